package provider

import (
	"context"
	"time"
)

// RetrySchedule is the fixed backoff applied to transient provider
// failures: entry i is the delay before attempt i+2 (1s, 2s, 4s).
// With MaxAttempts = 3, a provider is retried after 1s and then 2s;
// the 4s entry is reached only by a fourth attempt. Unlike an
// exponential-with-jitter policy, these exact delays are required, so
// the schedule is a literal slice rather than a computed curve.
var RetrySchedule = []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}

// MaxAttempts is the number of attempts made against a single
// provider before falling back to the next one in the chain.
const MaxAttempts = 3

// SleepBeforeAttempt sleeps the delay for the given 1-indexed attempt
// number (no sleep before attempt 1), respecting ctx cancellation.
func SleepBeforeAttempt(ctx context.Context, attempt int) error {
	if attempt <= 1 {
		return nil
	}
	idx := attempt - 2
	if idx < 0 || idx >= len(RetrySchedule) {
		return nil
	}
	timer := time.NewTimer(RetrySchedule[idx])
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
