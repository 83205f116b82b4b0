package runtime

import (
	"context"
	"sync"

	"github.com/forgewing/agentcore/internal/cancel"
)

// chatState holds one chat key's current turn handle, serialized by
// its own mutex so that two concurrent Start calls for the same key
// hand off cleanly rather than racing to install competing handles.
type chatState struct {
	mu    sync.Mutex
	token *cancel.Token
	done  chan struct{}
}

// ChatRegistry is the process-wide auto-cancellation registry:
// starting a turn for a chat key that already has an outstanding
// handle cancels the prior handle and waits for it to drain before
// returning, guaranteeing at most one active turn per chat key, in
// the style of a map[string]*struct idiom for per-key in-flight
// state.
type ChatRegistry struct {
	mu     sync.Mutex
	states map[string]*chatState
}

// NewChatRegistry returns an empty registry.
func NewChatRegistry() *ChatRegistry {
	return &ChatRegistry{states: make(map[string]*chatState)}
}

// Start cancels and waits for any turn already in flight for chatKey,
// then installs and returns a fresh cancellation token derived from
// parent. The caller must invoke the returned release function
// exactly once, after the turn has finished, or Start for the same
// chatKey will hang waiting to drain.
func (r *ChatRegistry) Start(parent context.Context, chatKey string) (*cancel.Token, func()) {
	r.mu.Lock()
	st, ok := r.states[chatKey]
	if !ok {
		st = &chatState{}
		r.states[chatKey] = st
	}
	r.mu.Unlock()

	st.mu.Lock()
	if st.token != nil {
		st.token.Cancel()
		<-st.done
	}
	token := cancel.New(parent)
	doneCh := make(chan struct{})
	st.token = token
	st.done = doneCh
	st.mu.Unlock()

	released := false
	release := func() {
		if released {
			return
		}
		released = true
		close(doneCh)
	}
	return token, release
}
