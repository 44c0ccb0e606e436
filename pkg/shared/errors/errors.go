// Package errors defines the error taxonomy shared across the order
// intake pipeline: a stable Code, a retry Kind, and an OperationError
// wrapper that carries both plus human context.
package errors

import "fmt"

// Kind classifies an error for retry-policy and propagation purposes.
type Kind string

const (
	KindInput      Kind = "input"      // non-retryable, terminal at the step
	KindTransient  Kind = "transient"  // retryable per the aggressive/standard policy
	KindAuth       Kind = "auth"       // non-retryable, surfaced to operators
	KindLogic      Kind = "logic"      // non-retryable, triggers needs_human
	KindInternal   Kind = "internal"   // non-retryable, terminal failed
)

// Code is a stable identifier from the closed taxonomy below.
type Code string

const (
	CodeBlockedFile         Code = "BLOCKED_FILE"
	CodeParseUnparsable     Code = "PARSE_UNPARSABLE"
	CodeInvalidRequest      Code = "INVALID_REQUEST"
	CodeValidationFailed    Code = "VALIDATION_FAILED"
	CodeCatalogUnavailable  Code = "CATALOG_UNAVAILABLE"
	CodeCatalogRateLimited  Code = "CATALOG_RATE_LIMITED"
	CodeProviderTimeout     Code = "PROVIDER_TIMEOUT"
	CodeStorageUnavailable  Code = "STORAGE_UNAVAILABLE"
	CodeCatalogAuthFailed   Code = "CATALOG_AUTH_FAILED"
	CodeTenantForbidden     Code = "TENANT_FORBIDDEN"
	CodeCustomerAmbiguous   Code = "CUSTOMER_AMBIGUOUS"
	CodeCustomerNotFound    Code = "CUSTOMER_NOT_FOUND"
	CodeItemsUnresolved     Code = "ITEMS_UNRESOLVED"
	CodeCommitteeDisagree   Code = "COMMITTEE_DISAGREEMENT"
	CodeArithmeticMismatch  Code = "ARITHMETIC_MISMATCH"
	CodeMissingItemID       Code = "MISSING_ITEM_IDENTIFIER"
	CodeUnparsableQuantity  Code = "UNPARSABLE_QUANTITY"
	CodeInvariantViolated   Code = "INVARIANT_VIOLATED"
	CodeDeterminismViolated Code = "DETERMINISM_VIOLATED"
	CodeEventLogGap         Code = "EVENT_LOG_GAP"
)

var codeKinds = map[Code]Kind{
	CodeBlockedFile:         KindInput,
	CodeParseUnparsable:     KindInput,
	CodeInvalidRequest:      KindInput,
	CodeValidationFailed:    KindInput,
	CodeCatalogUnavailable:  KindTransient,
	CodeCatalogRateLimited:  KindTransient,
	CodeProviderTimeout:     KindTransient,
	CodeStorageUnavailable:  KindTransient,
	CodeCatalogAuthFailed:   KindAuth,
	CodeTenantForbidden:     KindAuth,
	CodeCustomerAmbiguous:   KindLogic,
	CodeCustomerNotFound:    KindLogic,
	CodeItemsUnresolved:     KindLogic,
	CodeCommitteeDisagree:   KindLogic,
	CodeArithmeticMismatch:  KindLogic,
	CodeMissingItemID:       KindLogic,
	CodeUnparsableQuantity:  KindInput,
	CodeInvariantViolated:   KindInternal,
	CodeDeterminismViolated: KindInternal,
	CodeEventLogGap:         KindInternal,
}

// KindOf returns the retry/propagation kind for a known code. Unknown
// codes default to KindInternal so an unclassified error never gets
// silently retried.
func KindOf(code Code) Kind {
	if k, ok := codeKinds[code]; ok {
		return k
	}
	return KindInternal
}

// OperationError is the structured error every component returns at its
// boundary. It mirrors fmt.Errorf-style wrapping (Unwrap) while carrying
// enough structure for the retry policy and the event log to act on.
type OperationError struct {
	Operation string
	Component string
	Resource  string
	Code      Code
	Cause     error
}

func (e *OperationError) Error() string {
	msg := fmt.Sprintf("failed to %s", e.Operation)
	if e.Component != "" {
		msg += fmt.Sprintf(", component: %s", e.Component)
	}
	if e.Resource != "" {
		msg += fmt.Sprintf(", resource: %s", e.Resource)
	}
	if e.Code != "" {
		msg += fmt.Sprintf(", code: %s", e.Code)
	}
	if e.Cause != nil {
		msg += fmt.Sprintf(", cause: %s", e.Cause.Error())
	}
	return msg
}

func (e *OperationError) Unwrap() error {
	return e.Cause
}

// Kind returns the retry/propagation kind implied by the error's code.
func (e *OperationError) Kind() Kind {
	return KindOf(e.Code)
}

// Retryable reports whether the error's kind is eligible for the
// activity retry policy: only transient errors are retried.
func (e *OperationError) Retryable() bool {
	return e.Kind() == KindTransient
}

// FailedTo builds a minimal OperationError, mirroring fmt.Errorf's
// "failed to <action>: <cause>" idiom but returning a typed error.
func FailedTo(action string, cause error) error {
	return &OperationError{Operation: action, Cause: cause}
}

// FailedToWithDetails builds an OperationError with component/resource
// context, used where the retry policy or audit trail needs to know
// which collaborator and resource were involved.
func FailedToWithDetails(action, component, resource string, cause error) error {
	return &OperationError{Operation: action, Component: component, Resource: resource, Cause: cause}
}

// WithCode attaches a taxonomy code to an OperationError built above.
func WithCode(err error, code Code) error {
	if oe, ok := err.(*OperationError); ok {
		oe.Code = code
		return oe
	}
	return &OperationError{Operation: "unknown", Code: code, Cause: err}
}

// New builds a fully specified OperationError in one call.
func New(operation, component, resource string, code Code, cause error) *OperationError {
	return &OperationError{Operation: operation, Component: component, Resource: resource, Code: code, Cause: cause}
}
