package llm

import (
	"encoding/json"
	"sort"

	"github.com/forgewing/agentcore/pkg/models"
)

// toolCallBuild accumulates one tool call's fragments, keyed by the
// delta index the provider assigns it.
type toolCallBuild struct {
	index int
	id    string
	name  string
	args  []byte
}

// ToolCallAccumulator reassembles fragmented tool-call deltas by
// index: id and name arrive once, argument JSON arrives as string
// fragments concatenated in order.
// The runtime feeds it every ToolCallPartial event it relays and
// calls Finalize once the round's stream ends.
type ToolCallAccumulator struct {
	byIndex map[int]*toolCallBuild
	order   []int
}

// NewToolCallAccumulator returns an empty accumulator.
func NewToolCallAccumulator() *ToolCallAccumulator {
	return &ToolCallAccumulator{byIndex: make(map[int]*toolCallBuild)}
}

// Feed records one ToolCallPartial event's fragment.
func (a *ToolCallAccumulator) Feed(ev models.StreamEvent) {
	if ev.Kind != models.EventToolCallPartial {
		return
	}
	b, ok := a.byIndex[ev.Index]
	if !ok {
		b = &toolCallBuild{index: ev.Index}
		a.byIndex[ev.Index] = b
		a.order = append(a.order, ev.Index)
	}
	if ev.ToolCallID != "" {
		b.id = ev.ToolCallID
	}
	if ev.ToolName != "" {
		b.name = ev.ToolName
	}
	if ev.ArgsFrag != "" {
		b.args = append(b.args, ev.ArgsFrag...)
	}
}

// Finalize returns the assembled tool calls in index order, which
// matches call-id order since a provider issues delta indices in the
// same order it issues tool calls.
func (a *ToolCallAccumulator) Finalize() []models.ToolCallRequest {
	if len(a.order) == 0 {
		return nil
	}
	sort.Ints(a.order)
	out := make([]models.ToolCallRequest, 0, len(a.order))
	for _, idx := range a.order {
		b := a.byIndex[idx]
		raw := b.args
		if len(raw) == 0 {
			raw = []byte("{}")
		}
		out = append(out, models.ToolCallRequest{
			ID:        b.id,
			Name:      b.name,
			Arguments: json.RawMessage(raw),
		})
	}
	return out
}

// Empty reports whether no tool-call fragments have been fed.
func (a *ToolCallAccumulator) Empty() bool { return len(a.order) == 0 }
