package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/forgewing/agentcore/internal/errs"
	"github.com/forgewing/agentcore/internal/provider"
	"github.com/forgewing/agentcore/pkg/models"
)

// fakeBackend scripts a fixed sequence of Stream outcomes, one per call.
type fakeBackend struct {
	calls     int
	responses []func() (<-chan models.StreamEvent, error)
}

func (b *fakeBackend) Stream(ctx context.Context, d provider.Descriptor, messages []models.Message, tools []ToolSchema, opts Options) (<-chan models.StreamEvent, error) {
	idx := b.calls
	b.calls++
	if idx >= len(b.responses) {
		return nil, errors.New("fakeBackend: ran out of scripted responses")
	}
	return b.responses[idx]()
}

func eventsChan(evs ...models.StreamEvent) func() (<-chan models.StreamEvent, error) {
	return func() (<-chan models.StreamEvent, error) {
		ch := make(chan models.StreamEvent, len(evs))
		for _, ev := range evs {
			ch <- ev
		}
		close(ch)
		return ch, nil
	}
}

func errResponse(err error) func() (<-chan models.StreamEvent, error) {
	return func() (<-chan models.StreamEvent, error) { return nil, err }
}

func drain(ch <-chan models.StreamEvent) []models.StreamEvent {
	var out []models.StreamEvent
	for ev := range ch {
		out = append(out, ev)
	}
	return out
}

func TestStreamOneRetriesTransientThenSucceeds(t *testing.T) {
	backend := &fakeBackend{responses: []func() (<-chan models.StreamEvent, error){
		errResponse(NewBackendError(true, errors.New("503"))),
		eventsChan(models.ContentDeltaEvent("ok")),
	}}
	client := NewClient()
	client.RegisterBackend(provider.BackendOpenAICompat, backend)

	ch, err := client.StreamOne(context.Background(), provider.Descriptor{Label: "p1"}, nil, nil, Options{})
	if err != nil {
		t.Fatalf("StreamOne() error = %v", err)
	}
	evs := drain(ch)
	if len(evs) == 0 || evs[0].Kind != models.EventContentDelta {
		t.Fatalf("events = %+v, want a leading content delta", evs)
	}
	if backend.calls != 2 {
		t.Errorf("backend.calls = %d, want 2 (one transient failure, one success)", backend.calls)
	}
}

func TestStreamOneFatalErrorDoesNotRetry(t *testing.T) {
	backend := &fakeBackend{responses: []func() (<-chan models.StreamEvent, error){
		errResponse(NewBackendError(false, errors.New("400 bad request"))),
	}}
	client := NewClient()
	client.RegisterBackend(provider.BackendOpenAICompat, backend)

	_, err := client.StreamOne(context.Background(), provider.Descriptor{Label: "p1"}, nil, nil, Options{})
	if err == nil {
		t.Fatal("expected StreamOne() to fail on a fatal error")
	}
	if !errs.Is(err, errs.ProviderFatal) {
		t.Errorf("error kind = %v, want ProviderFatal", err)
	}
	if backend.calls != 1 {
		t.Errorf("backend.calls = %d, want 1 (no retry on a fatal error)", backend.calls)
	}
}

func TestStreamOneSynthesizesUsageWhenMissing(t *testing.T) {
	backend := &fakeBackend{responses: []func() (<-chan models.StreamEvent, error){
		eventsChan(models.ContentDeltaEvent("hello")),
	}}
	client := NewClient()
	client.RegisterBackend(provider.BackendOpenAICompat, backend)

	ch, err := client.StreamOne(context.Background(), provider.Descriptor{Label: "p1"}, []models.Message{{Content: "hi"}}, nil, Options{})
	if err != nil {
		t.Fatalf("StreamOne() error = %v", err)
	}
	evs := drain(ch)
	last := evs[len(evs)-1]
	if last.Kind != models.EventUsage {
		t.Fatalf("last event kind = %v, want a synthesized Usage event", last.Kind)
	}
	if last.TotalTokens != last.PromptTokens+last.CompletionTokens {
		t.Errorf("synthesized usage totals do not add up: %+v", last)
	}
}

func TestStreamOnePassesThroughRealUsage(t *testing.T) {
	backend := &fakeBackend{responses: []func() (<-chan models.StreamEvent, error){
		eventsChan(models.ContentDeltaEvent("hello"), models.UsageEvent(5, 5, 10)),
	}}
	client := NewClient()
	client.RegisterBackend(provider.BackendOpenAICompat, backend)

	ch, err := client.StreamOne(context.Background(), provider.Descriptor{Label: "p1"}, nil, nil, Options{})
	if err != nil {
		t.Fatal(err)
	}
	evs := drain(ch)
	usageCount := 0
	for _, ev := range evs {
		if ev.Kind == models.EventUsage {
			usageCount++
		}
	}
	if usageCount != 1 {
		t.Fatalf("usage event count = %d, want exactly 1 (no synthesized duplicate)", usageCount)
	}
}

func TestStreamChainFallsBackAndRecordsState(t *testing.T) {
	p1 := &fakeBackend{responses: []func() (<-chan models.StreamEvent, error){
		errResponse(NewBackendError(false, errors.New("boom"))),
	}}
	p2 := &fakeBackend{responses: []func() (<-chan models.StreamEvent, error){
		eventsChan(models.ContentDeltaEvent("ok")),
	}}

	client := NewClient()
	multiplexed := &labelRoutedBackend{byLabel: map[string]Backend{"p1": p1, "p2": p2}}
	client.RegisterBackend(provider.BackendOpenAICompat, multiplexed)

	chain := provider.NewChain(
		provider.Descriptor{Label: "p1", Backend: provider.BackendOpenAICompat},
		provider.Descriptor{Label: "p2", Backend: provider.BackendOpenAICompat},
	)

	ch, result, err := client.StreamChain(context.Background(), chain, nil, nil, Options{})
	if err != nil {
		t.Fatalf("StreamChain() error = %v", err)
	}
	drain(ch)
	if result.Label != "p2" {
		t.Errorf("result.Label = %q, want p2", result.Label)
	}
	if chain.LastSuccessful() != "p2" {
		t.Errorf("LastSuccessful() = %q, want p2", chain.LastSuccessful())
	}
	if chain.Failures("p1") != 1 {
		t.Errorf("Failures(p1) = %d, want 1", chain.Failures("p1"))
	}
}

func TestStreamChainAllProvidersFailed(t *testing.T) {
	backend := &fakeBackend{responses: []func() (<-chan models.StreamEvent, error){
		errResponse(NewBackendError(false, errors.New("down"))),
	}}
	client := NewClient()
	client.RegisterBackend(provider.BackendOpenAICompat, backend)

	chain := provider.NewChain(provider.Descriptor{Label: "p1", Backend: provider.BackendOpenAICompat})
	_, _, err := client.StreamChain(context.Background(), chain, nil, nil, Options{})
	if !errs.Is(err, errs.AllProvidersFailed) {
		t.Errorf("error = %v, want kind AllProvidersFailed", err)
	}
}

// labelRoutedBackend dispatches to a different fakeBackend per
// provider label, so a single registered Backend can serve a
// multi-provider chain test.
type labelRoutedBackend struct {
	byLabel map[string]Backend
}

func (b *labelRoutedBackend) Stream(ctx context.Context, d provider.Descriptor, messages []models.Message, tools []ToolSchema, opts Options) (<-chan models.StreamEvent, error) {
	return b.byLabel[d.Label].Stream(ctx, d, messages, tools, opts)
}
