// Package errs implements the closed error taxonomy as
// a single Kind enum plus a carrier type, following the pattern of
// the prior internal/agent/providers error classification: one
// enum, one wrapper, and classifier helpers rather than a distinct
// error type per package.
package errs

import "fmt"

// Kind is one of the closed set of error categories the agent
// execution core classifies failures into.
type Kind string

const (
	// ProviderTransient is retried with backoff against the same
	// provider: HTTP 429/502/503/504, connection reset, DNS failure.
	ProviderTransient Kind = "provider_transient"

	// ProviderFatal moves to the next provider in the fallback chain
	// and increments its failure counter.
	ProviderFatal Kind = "provider_fatal"

	// AllProvidersFailed is surfaced to the caller once every
	// provider in the chain has failed or is circuit-open.
	AllProvidersFailed Kind = "all_providers_failed"

	// ToolValidation is surfaced to the LLM as a failed tool message;
	// it never aborts the turn.
	ToolValidation Kind = "tool_validation"

	// ToolSandbox has the same surface as ToolValidation; the reason
	// text names the sandbox policy that denied the call.
	ToolSandbox Kind = "tool_sandbox"

	// ToolExec has the same surface as ToolValidation; it covers
	// non-zero exit, timeout, or I/O error during tool execution.
	ToolExec Kind = "tool_exec"

	// Cancelled is a sentinel turn result, not an error to the caller
	// that issued the cancellation.
	Cancelled Kind = "cancelled"

	// Timeout is raised when a turn's 120s deadline elapses.
	Timeout Kind = "timeout"

	// SessionStore is a fatal turn error; the turn aborts before
	// starting a new round.
	SessionStore Kind = "session_store"
)

// Error carries a Kind alongside a human-readable message and an
// optional wrapped cause.
type Error struct {
	K       Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.K, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.K, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// KindOf returns the error's category, satisfying the classification
// idiom used throughout the runtime (errors.As to *Error, then KindOf).
func (e *Error) KindOf() Kind { return e.K }

// New constructs an *Error of the given kind.
func New(k Kind, message string) *Error {
	return &Error{K: k, Message: message}
}

// Wrap constructs an *Error of the given kind wrapping cause.
func Wrap(k Kind, message string, cause error) *Error {
	return &Error{K: k, Message: message, Cause: cause}
}

// Is reports whether err is an *Error of kind k.
func Is(err error, k Kind) bool {
	var e *Error
	for err != nil {
		if ae, ok := err.(*Error); ok {
			e = ae
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return e != nil && e.K == k
}
