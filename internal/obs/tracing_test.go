package obs

import (
	"context"
	"testing"
)

func TestNewTracerStartsSpans(t *testing.T) {
	tracer, shutdown := NewTracer("agentcore-test")
	defer shutdown(context.Background())
	if tracer == nil {
		t.Fatal("NewTracer() returned a nil Tracer")
	}

	ctx, turnSpan := tracer.StartTurn(context.Background(), "telegram:assistant:u1:c1", "gpt-4o")
	if turnSpan == nil {
		t.Fatal("StartTurn() returned a nil span")
	}

	ctx, roundSpan := tracer.StartRound(ctx, 1)
	if roundSpan == nil {
		t.Fatal("StartRound() returned a nil span")
	}

	_, toolSpan := tracer.StartToolDispatch(ctx, "read", "call-1")
	if toolSpan == nil {
		t.Fatal("StartToolDispatch() returned a nil span")
	}

	toolSpan.End()
	roundSpan.End()
	turnSpan.End()
}

func TestNewTracerShutdownSucceeds(t *testing.T) {
	_, shutdown := NewTracer("agentcore-test-2")
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown() error = %v", err)
	}
}
