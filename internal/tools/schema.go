package tools

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	jsv "github.com/santhosh-tekuri/jsonschema/v5"
)

// generateSchema reflects a Go argument struct into the JSON Schema
// "parameters" object forwarded to the LLM, using a reflective
// generator rather than hand-writing each tool's schema map.
func generateSchema(v any) map[string]any {
	r := &jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}
	s := r.Reflect(v)
	raw, err := json.Marshal(s)
	if err != nil {
		return map[string]any{"type": "object"}
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]any{"type": "object"}
	}
	delete(out, "$schema")
	delete(out, "$id")
	return out
}

// compiledValidator validates incoming tool arguments against the
// schema generated for the same struct, so a validation failure is
// caught before any side effect runs.
type compiledValidator struct {
	schema *jsv.Schema
}

// newValidator compiles schema (as produced by generateSchema) into
// a reusable validator. Compilation happens once per tool at
// construction time.
func newValidator(name string, schema map[string]any) (*compiledValidator, error) {
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("marshal schema for %s: %w", name, err)
	}
	compiler := jsv.NewCompiler()
	if err := compiler.AddResource(name+".json", bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("add schema resource for %s: %w", name, err)
	}
	compiled, err := compiler.Compile(name + ".json")
	if err != nil {
		return nil, fmt.Errorf("compile schema for %s: %w", name, err)
	}
	return &compiledValidator{schema: compiled}, nil
}

// Validate decodes raw as generic JSON and checks it against the
// compiled schema, returning a human-readable error on violation.
func (v *compiledValidator) Validate(raw json.RawMessage) error {
	var doc any
	if len(raw) == 0 {
		doc = map[string]any{}
	} else if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("arguments are not valid JSON: %w", err)
	}
	return v.schema.Validate(doc)
}
