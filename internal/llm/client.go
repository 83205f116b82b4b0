package llm

import (
	"context"
	"errors"

	"github.com/forgewing/agentcore/internal/errs"
	"github.com/forgewing/agentcore/internal/provider"
	"github.com/forgewing/agentcore/pkg/models"
)

// Client implements chat streaming: per-provider retry with the
// fixed 1s/2s/4s schedule, and fallback across an ordered provider
// chain with a shared circuit breaker.
type Client struct {
	backends map[provider.Backend]Backend
}

// NewClient builds a Client. The openaicompat backend is always
// registered as the default; native backends are added via
// RegisterBackend.
func NewClient() *Client {
	c := &Client{backends: map[provider.Backend]Backend{
		provider.BackendOpenAICompat: NewOpenAICompatBackend(),
	}}
	return c
}

// RegisterBackend adds or replaces the implementation serving a
// Backend kind.
func (c *Client) RegisterBackend(kind provider.Backend, b Backend) {
	c.backends[kind] = b
}

func (c *Client) backendFor(d provider.Descriptor) (Backend, error) {
	kind := d.Backend
	if kind == "" {
		kind = provider.BackendOpenAICompat
	}
	b, ok := c.backends[kind]
	if !ok {
		return nil, errs.New(errs.ProviderFatal, "no backend registered for "+string(kind))
	}
	return b, nil
}

// promptChars sums the character length of every message's content,
// used for the synthetic usage estimate.
func promptChars(messages []models.Message) int {
	n := 0
	for _, m := range messages {
		n += len(m.Content) + len(m.ReasoningContent)
	}
	return n
}

// StreamOne drives one streaming call against a single provider with
// these retry rules: transient HTTP 429/502/503/504 and
// connection errors trigger up to MaxAttempts tries with the fixed
// backoff schedule; any other error is returned immediately as
// ProviderFatal. On success the returned channel is fully owned by
// the caller and carries a synthetic Usage event if the provider
// never sent one.
func (c *Client) StreamOne(ctx context.Context, d provider.Descriptor, messages []models.Message, tools []ToolSchema, opts Options) (<-chan models.StreamEvent, error) {
	backend, err := c.backendFor(d)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 1; attempt <= provider.MaxAttempts; attempt++ {
		if err := provider.SleepBeforeAttempt(ctx, attempt); err != nil {
			return nil, errs.Wrap(errs.Cancelled, "retry sleep interrupted", err)
		}

		raw, err := backend.Stream(ctx, d, messages, tools, opts)
		if err != nil {
			var ce *classifiedErr
			if errors.As(err, &ce) && ce.transient {
				lastErr = err
				continue
			}
			return nil, errs.Wrap(errs.ProviderFatal, "provider "+d.Label+" failed", err)
		}

		return c.wrapWithUsageSynthesis(raw, promptChars(messages)), nil
	}

	return nil, errs.Wrap(errs.ProviderFatal, "provider "+d.Label+" exhausted retries", lastErr)
}

// wrapWithUsageSynthesis relays every event from raw, tracking
// whether a real Usage event arrived and how many content characters
// were produced (reasoning deltas are not counted); if the stream ends without a Usage
// event, it emits a synthetic one estimated at ~4 chars/token.
func (c *Client) wrapWithUsageSynthesis(raw <-chan models.StreamEvent, promptCharCount int) <-chan models.StreamEvent {
	out := make(chan models.StreamEvent)
	go func() {
		defer close(out)
		sawUsage := false
		completionChars := 0
		for ev := range raw {
			switch ev.Kind {
			case models.EventUsage:
				sawUsage = true
			case models.EventContentDelta:
				completionChars += len(ev.Text)
			}
			out <- ev
		}
		if !sawUsage {
			prompt := EstimateTokens(promptCharCount)
			completion := EstimateTokens(completionChars)
			out <- models.UsageEvent(prompt, completion, prompt+completion)
		}
	}()
	return out
}

// markOutcomeOnStream relays events unchanged, crediting label's
// circuit breaker the moment the outcome of the stream becomes known:
// RecordSuccess on the first non-error event (resetting its failure
// counter), or RecordFailure the moment an EventError appears, however
// late in the stream. A malformed-stream failure is a ProviderFatal
// condition per the wire backends (openaicompat.go, native/*.go), so
// it must count against the provider even when it arrives after some
// content has already streamed.
func markOutcomeOnStream(raw <-chan models.StreamEvent, chain *provider.Chain, label string) <-chan models.StreamEvent {
	out := make(chan models.StreamEvent)
	go func() {
		defer close(out)
		marked := false
		for ev := range raw {
			if ev.Kind == models.EventError {
				chain.RecordFailure(label)
				marked = true
			} else if !marked {
				chain.RecordSuccess(label)
				marked = true
			}
			out <- ev
		}
	}()
	return out
}

// prependEvent returns a channel that replays first before relaying
// the rest of raw, so a caller that has already consumed one event to
// inspect it can hand the stream on to a consumer that expects to see
// every event in order.
func prependEvent(first models.StreamEvent, raw <-chan models.StreamEvent) <-chan models.StreamEvent {
	out := make(chan models.StreamEvent)
	go func() {
		defer close(out)
		out <- first
		for ev := range raw {
			out <- ev
		}
	}()
	return out
}

// ChainResult is returned by StreamChain so the runtime can learn
// which provider actually served the round once the stream has been
// fully consumed, without inspecting events out of band.
type ChainResult struct {
	Label string
}

// StreamChain implements the fallback rule: providers are attempted
// in order, skipping any whose circuit is open; the
// first provider that streams successfully becomes LastSuccessful and
// has its failure counter reset; exhausting the chain returns
// AllProvidersFailed.
//
// A malformed-stream failure (EventError) that arrives as a provider's
// very first event is treated the same as a connection-level
// ProviderFatal failure: the provider's circuit is charged and the
// chain falls over to the next candidate within the same call, before
// any event has been relayed to the caller. A failure that arrives
// after real output has already streamed cannot be retried behind the
// caller's back without corrupting the transcript it has already
// seen; markOutcomeOnStream still charges the circuit for it once the
// caller drains that far, so the chain accounts for it going forward.
func (c *Client) StreamChain(ctx context.Context, chain *provider.Chain, messages []models.Message, tools []ToolSchema, opts Options) (<-chan models.StreamEvent, *ChainResult, error) {
	var lastErr error
	for _, d := range chain.Providers() {
		if !chain.Available(d.Label) {
			continue
		}
		events, err := c.StreamOne(ctx, d, messages, tools, opts)
		if err != nil {
			chain.RecordFailure(d.Label)
			lastErr = err
			continue
		}

		first, ok := <-events
		if !ok {
			chain.RecordFailure(d.Label)
			lastErr = errs.New(errs.ProviderFatal, "provider "+d.Label+" closed its stream without any events")
			continue
		}
		if first.Kind == models.EventError {
			chain.RecordFailure(d.Label)
			lastErr = errs.New(errs.ProviderFatal, "provider "+d.Label+" failed mid-stream: "+first.Message)
			// Drain whatever the backend still sends (e.g. a synthetic
			// trailing Usage event) so its goroutine can exit; this
			// stream is abandoned in favor of the next provider.
			go func(ch <-chan models.StreamEvent) {
				for range ch {
				}
			}(events)
			continue
		}

		return markOutcomeOnStream(prependEvent(first, events), chain, d.Label), &ChainResult{Label: d.Label}, nil
	}
	if lastErr == nil {
		if len(chain.Providers()) == 0 {
			lastErr = errors.New("no providers configured")
		} else {
			lastErr = errors.New("every provider circuit is open")
		}
	}
	return nil, nil, errs.Wrap(errs.AllProvidersFailed, "every provider in the chain failed or is circuit-open", lastErr)
}
