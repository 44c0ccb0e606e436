package errors

import (
	"fmt"
	"testing"
)

func TestOperationError(t *testing.T) {
	tests := []struct {
		name     string
		err      *OperationError
		expected string
	}{
		{
			name: "full error",
			err: &OperationError{
				Operation: "connect to catalog",
				Component: "catalog-client",
				Resource:  "customer-search",
				Code:      CodeCatalogUnavailable,
				Cause:     fmt.Errorf("connection timeout"),
			},
			expected: "failed to connect to catalog, component: catalog-client, resource: customer-search, code: CATALOG_UNAVAILABLE, cause: connection timeout",
		},
		{
			name: "minimal error",
			err: &OperationError{
				Operation: "parse spreadsheet",
				Cause:     fmt.Errorf("invalid xlsx"),
			},
			expected: "failed to parse spreadsheet, cause: invalid xlsx",
		},
		{
			name: "no cause",
			err: &OperationError{
				Operation: "validate input",
				Component: "validator",
			},
			expected: "failed to validate input, component: validator",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("OperationError.Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestOperationError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("underlying error")
	err := &OperationError{Operation: "test", Cause: cause}

	if unwrapped := err.Unwrap(); unwrapped != cause {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, cause)
	}

	errNoCause := &OperationError{Operation: "test"}
	if unwrapped := errNoCause.Unwrap(); unwrapped != nil {
		t.Errorf("Unwrap() with no cause = %v, want nil", unwrapped)
	}
}

func TestFailedTo(t *testing.T) {
	err := FailedTo("connect to database", fmt.Errorf("connection refused"))
	want := "failed to connect to database, cause: connection refused"
	if err.Error() != want {
		t.Errorf("FailedTo() = %q, want %q", err.Error(), want)
	}
}

func TestFailedToWithDetails(t *testing.T) {
	cause := fmt.Errorf("timeout")
	err := FailedToWithDetails("query drafts", "catalog", "idempotency-index", cause)

	opErr, ok := err.(*OperationError)
	if !ok {
		t.Fatalf("FailedToWithDetails() should return *OperationError, got %T", err)
	}
	if opErr.Operation != "query drafts" || opErr.Component != "catalog" || opErr.Resource != "idempotency-index" {
		t.Errorf("unexpected fields: %+v", opErr)
	}
	if opErr.Cause != cause {
		t.Errorf("Cause = %v, want %v", opErr.Cause, cause)
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		code Code
		want Kind
	}{
		{CodeBlockedFile, KindInput},
		{CodeCatalogUnavailable, KindTransient},
		{CodeCatalogRateLimited, KindTransient},
		{CodeCatalogAuthFailed, KindAuth},
		{CodeCustomerAmbiguous, KindLogic},
		{CodeInvariantViolated, KindInternal},
		{Code("UNKNOWN_CODE"), KindInternal},
	}
	for _, tt := range tests {
		if got := KindOf(tt.code); got != tt.want {
			t.Errorf("KindOf(%s) = %s, want %s", tt.code, got, tt.want)
		}
	}
}

func TestOperationError_Retryable(t *testing.T) {
	retryable := &OperationError{Operation: "create draft", Code: CodeCatalogUnavailable}
	if !retryable.Retryable() {
		t.Error("CATALOG_UNAVAILABLE should be retryable")
	}

	terminal := &OperationError{Operation: "create draft", Code: CodeInvalidRequest}
	if terminal.Retryable() {
		t.Error("INVALID_REQUEST should not be retryable")
	}
}

func TestWithCode(t *testing.T) {
	base := FailedTo("create draft", fmt.Errorf("boom"))
	withCode := WithCode(base, CodeCatalogRateLimited)

	oe, ok := withCode.(*OperationError)
	if !ok {
		t.Fatalf("expected *OperationError, got %T", withCode)
	}
	if oe.Code != CodeCatalogRateLimited {
		t.Errorf("Code = %s, want %s", oe.Code, CodeCatalogRateLimited)
	}
}
