package workflow

import (
	"go.temporal.io/sdk/temporal"

	sharedretry "github.com/orderflow/core/pkg/shared/retry"
)

// toTemporalRetryPolicy translates a pkg/shared/retry.Policy into the
// equivalent temporal.RetryPolicy, so the Standard/Aggressive policies
// defined once in  drive both Temporal's own activity retry
// and pkg/catalog's client-side retry loop.
func toTemporalRetryPolicy(p sharedretry.Policy, nonRetryable ...string) *temporal.RetryPolicy {
	return &temporal.RetryPolicy{
		InitialInterval:        p.InitialBackoff,
		BackoffCoefficient:     p.BackoffCoefficient,
		MaximumInterval:        p.MaxBackoff,
		MaximumAttempts:        int32(p.MaxAttempts),
		NonRetryableErrorTypes: nonRetryable,
	}
}

// standardRetryPolicy and aggressiveRetryPolicy are the two named
// activity retry policies activities select between.
func standardRetryPolicy() *temporal.RetryPolicy {
	return toTemporalRetryPolicy(sharedretry.Standard, "OperationErrorInput", "OperationErrorAuth", "OperationErrorLogic", "OperationErrorInternal")
}

func aggressiveRetryPolicy() *temporal.RetryPolicy {
	return toTemporalRetryPolicy(sharedretry.Aggressive, "OperationErrorInput", "OperationErrorAuth", "OperationErrorLogic", "OperationErrorInternal")
}
