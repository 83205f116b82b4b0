package runtime

import (
	"context"

	"github.com/google/uuid"

	"github.com/forgewing/agentcore/internal/cancel"
	"github.com/forgewing/agentcore/internal/session"
)

// DelegateRunner implements internal/tools.Runner on top of Runtime,
// satisfying the delegate tool's dependency-inversion seam. Each
// sub-agent turn gets its own round budget and deadline, a tool
// registry with delegate itself removed so it cannot recurse, and a
// throwaway in-memory session never visible to the parent's history.
type DelegateRunner struct {
	Parent *Runtime
}

// RunDelegatedTurn drives one sub-agent turn to completion and
// returns its final reply text.
func (d *DelegateRunner) RunDelegatedTurn(ctx context.Context, task string, model string, parentCancel *cancel.Token) (string, error) {
	store, err := session.NewSQLiteStore(ctx, ":memory:")
	if err != nil {
		return "", err
	}
	defer store.Close()

	sub := *d.Parent
	sub.Store = store
	sub.Registry = d.Parent.Registry.Without("delegate")
	sub.Chats = NewChatRegistry()
	// A sub-agent turn never itself delegates further; DelegateRunner
	// is left nil on the clone so a stray "delegate" tool call (if the
	// registry strip above were ever bypassed) fails closed rather
	// than recursing.
	sub.DelegateRunner = nil

	parentCtx := ctx
	if parentCancel != nil {
		parentCtx = parentCancel.Context()
	}

	result, err := sub.RunTurn(parentCtx, TurnRequest{
		Channel:   "delegate",
		Agent:     "sub-agent",
		UserID:    "0",
		ChatID:    uuid.NewString(),
		Model:     model,
		UserInput: task,
	})
	if err != nil {
		return "", err
	}
	return result.ReplyText, nil
}
