package llm

import (
	"context"

	"github.com/forgewing/agentcore/internal/provider"
	"github.com/forgewing/agentcore/pkg/models"
)

// ToolSchema is an alias kept for readability within this package;
// the canonical type lives in pkg/models so internal/tools can build
// it without importing internal/llm.
type ToolSchema = models.ToolSchema

// Options are the chat-streaming parameters a caller may tune per call.
type Options struct {
	Temperature  float64
	MaxTokens    int
	IncludeUsage bool
}

// Backend is the wire-protocol-specific seam that lets a provider
// descriptor be served by the default OpenAI-compatible HTTP transport
// or by a native SDK (Anthropic, Google, Bedrock), all producing the
// identical StreamEvent union. Exactly one attempt against one
// provider is one call to Stream; retry and fallback live one layer
// up in Client.
type Backend interface {
	Stream(ctx context.Context, d provider.Descriptor, messages []models.Message, tools []ToolSchema, opts Options) (<-chan models.StreamEvent, error)
}

// classifiedErr lets a Backend tell Client how to classify a failure
// without Client needing to know the backend's wire details.
type classifiedErr struct {
	transient bool
	status    int
	err       error
}

func (c *classifiedErr) Error() string { return c.err.Error() }
func (c *classifiedErr) Unwrap() error { return c.err }

// NewBackendError lets a Backend implementation outside this package
// (a native SDK adapter, or a test double) classify a failure as
// transient or fatal without needing access to the unexported
// classifiedErr type.
func NewBackendError(transient bool, err error) error {
	return &classifiedErr{transient: transient, err: err}
}
