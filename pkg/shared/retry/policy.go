// Package retry defines the Standard and Aggressive activity retry
// policies from , independent of any particular execution
// engine. pkg/workflow translates these into temporal.RetryPolicy values;
// pkg/catalog uses them directly for its own client-side retry loop
// (token refresh, draft creation) honoring Retry-After.
package retry

import "time"

// Policy describes an exponential backoff retry schedule.
type Policy struct {
	MaxAttempts        int
	InitialBackoff     time.Duration
	BackoffCoefficient float64
	MaxBackoff         time.Duration
}

// Standard is the default activity policy: up to 3 attempts, 5s initial
// backoff, coefficient 2, capped at 30s.
var Standard = Policy{
	MaxAttempts:        3,
	InitialBackoff:     5 * time.Second,
	BackoffCoefficient: 2,
	MaxBackoff:         30 * time.Second,
}

// Aggressive is used for the external catalog's draft-creation and token
// refresh: up to 5 attempts, 5s initial backoff, coefficient 2, capped at
// 60s, and must additionally respect any Retry-After header (see
// BackoffForAttempt).
var Aggressive = Policy{
	MaxAttempts:        5,
	InitialBackoff:     5 * time.Second,
	BackoffCoefficient: 2,
	MaxBackoff:         60 * time.Second,
}

// BackoffForAttempt returns the sleep duration before the given attempt
// (1-indexed: attempt 1 is the first retry, not the initial call),
// honoring a server-supplied Retry-After floor when retryAfter > 0.
func (p Policy) BackoffForAttempt(attempt int, retryAfter time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	backoff := float64(p.InitialBackoff)
	for i := 1; i < attempt; i++ {
		backoff *= p.BackoffCoefficient
	}
	d := time.Duration(backoff)
	if d > p.MaxBackoff {
		d = p.MaxBackoff
	}
	if retryAfter > d {
		d = retryAfter
	}
	return d
}

// ExhaustedAfter reports whether attempt has used up the policy's budget.
func (p Policy) ExhaustedAfter(attempt int) bool {
	return attempt >= p.MaxAttempts
}
