package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// MemoryTool exposes a per-agent key-value document (MemoryStore) as
// a tool action set of {set, get, list, delete}.
type MemoryTool struct {
	schema    map[string]any
	validator *compiledValidator
}

type memoryArgs struct {
	Action string `json:"action" jsonschema:"enum=set,enum=get,enum=list,enum=delete,description=Memory operation to perform."`
	Key    string `json:"key,omitempty" jsonschema:"description=Memory key. Required for set/get/delete."`
	Value  string `json:"value,omitempty" jsonschema:"description=Value to store. Required for set."`
}

// NewMemoryTool builds the memory tool, compiling its argument schema
// once.
func NewMemoryTool() (*MemoryTool, error) {
	schema := generateSchema(memoryArgs{})
	validator, err := newValidator("memory", schema)
	if err != nil {
		return nil, err
	}
	return &MemoryTool{schema: schema, validator: validator}, nil
}

func (t *MemoryTool) Name() string { return "memory" }

func (t *MemoryTool) Description() string {
	return "Read or write persistent key-value notes that survive across sessions for this agent."
}

func (t *MemoryTool) Schema() map[string]any { return t.schema }

func (t *MemoryTool) Invoke(ctx context.Context, raw json.RawMessage, tc *Context) Result {
	if err := t.validator.Validate(raw); err != nil {
		return Result{Ok: false, Output: fmt.Sprintf("invalid arguments: %v", err)}
	}
	var args memoryArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return Result{Ok: false, Output: fmt.Sprintf("invalid arguments: %v", err)}
	}
	if tc.Memory == nil {
		return Result{Ok: false, Output: "memory store is not available for this session"}
	}

	switch strings.ToLower(args.Action) {
	case "set":
		if args.Key == "" {
			return Result{Ok: false, Output: "key is required for set"}
		}
		if err := tc.Memory.Set(args.Key, args.Value); err != nil {
			return Result{Ok: false, Output: fmt.Sprintf("write memory: %v", err)}
		}
		return Result{Ok: true, Output: fmt.Sprintf("stored key %q", args.Key)}
	case "get":
		if args.Key == "" {
			return Result{Ok: false, Output: "key is required for get"}
		}
		v, ok := tc.Memory.Get(args.Key)
		if !ok {
			return Result{Ok: true, Output: fmt.Sprintf("key %q not found", args.Key)}
		}
		return Result{Ok: true, Output: v}
	case "list":
		entries := tc.Memory.List()
		keys := make([]string, 0, len(entries))
		for k := range entries {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		payload, err := json.MarshalIndent(keys, "", "  ")
		if err != nil {
			return Result{Ok: false, Output: fmt.Sprintf("encode keys: %v", err)}
		}
		return Result{Ok: true, Output: string(payload)}
	case "delete":
		if args.Key == "" {
			return Result{Ok: false, Output: "key is required for delete"}
		}
		if err := tc.Memory.Delete(args.Key); err != nil {
			return Result{Ok: false, Output: fmt.Sprintf("delete memory: %v", err)}
		}
		return Result{Ok: true, Output: fmt.Sprintf("deleted key %q", args.Key)}
	default:
		return Result{Ok: false, Output: fmt.Sprintf("unknown action %q", args.Action)}
	}
}
