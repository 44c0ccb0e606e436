package workflow

import (
	"errors"

	"go.temporal.io/sdk/temporal"

	orderrs "github.com/orderflow/core/pkg/shared/errors"
)

// wrapActivityError gives an *orderrs.OperationError a Temporal
// application-error Type matching its Kind, so the NonRetryableErrorTypes
// set on standardRetryPolicy/aggressiveRetryPolicy (retrypolicy.go) can
// stop Temporal's own retry for input/auth/logic/internal errors without
// every activity needing to know about Temporal. A plain, unclassified
// error (no Kind to report) passes through unchanged and is retried per
// policy like any transient failure.
func wrapActivityError(err error) error {
	if err == nil {
		return nil
	}
	var oe *orderrs.OperationError
	if !errors.As(err, &oe) {
		return err
	}
	return temporal.NewApplicationErrorWithCause(oe.Error(), activityErrorType(oe.Kind()), oe)
}

func activityErrorType(k orderrs.Kind) string {
	switch k {
	case orderrs.KindInput:
		return "OperationErrorInput"
	case orderrs.KindAuth:
		return "OperationErrorAuth"
	case orderrs.KindLogic:
		return "OperationErrorLogic"
	case orderrs.KindInternal:
		return "OperationErrorInternal"
	default:
		return "OperationErrorTransient"
	}
}

// activityErrorIsTransient reports whether err — as received back in the
// workflow after crossing the activity serialization boundary — carries
// the transient application-error type. temporal.ApplicationError.Type()
// is checked rather than the original Go type, since Temporal's failure
// conversion does not preserve concrete error types across that boundary.
func activityErrorIsTransient(err error) bool {
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		return appErr.Type() == "OperationErrorTransient"
	}
	return false
}
