package cancel

import (
	"context"
	"testing"
	"time"
)

func TestTokenCancelIsIdempotentAndOneWay(t *testing.T) {
	tok := New(context.Background())
	if tok.Cancelled() {
		t.Fatal("expected live token")
	}
	tok.Cancel()
	tok.Cancel() // idempotent
	if !tok.Cancelled() {
		t.Fatal("expected cancelled token")
	}
}

func TestChildCancelledWithParent(t *testing.T) {
	root := New(context.Background())
	child := root.NewChild()
	root.Cancel()
	select {
	case <-child.Done():
	case <-time.After(time.Second):
		t.Fatal("child was not cancelled when parent cancelled")
	}
}

func TestChildCancelDoesNotAffectParent(t *testing.T) {
	root := New(context.Background())
	child := root.NewChild()
	child.Cancel()
	if root.Cancelled() {
		t.Fatal("parent should not be cancelled by child cancellation")
	}
}

func TestWithTimeout(t *testing.T) {
	root := New(context.Background())
	tok, release := WithTimeout(root, 10*time.Millisecond)
	defer release()
	select {
	case <-tok.Done():
	case <-time.After(time.Second):
		t.Fatal("expected timeout cancellation")
	}
}
