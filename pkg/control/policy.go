package control

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/rego"

	orderrs "github.com/orderflow/core/pkg/shared/errors"
)

// TenantAuthorizer evaluates policy/tenant_access.rego against every
// start request before it reaches the engine (the // "ambient security concern implied by the existing TENANT_FORBIDDEN
// code"). Signal requests are not evaluated.
type TenantAuthorizer struct {
	query rego.PreparedEvalQuery
}

// NewTenantAuthorizer compiles the Rego policy at path once at startup;
// PrepareForEval does the compilation work so every request only pays
// for evaluation.
func NewTenantAuthorizer(ctx context.Context, policyPath string) (*TenantAuthorizer, error) {
	q, err := rego.New(
		rego.Query("data.orderflow.authz.allow"),
		rego.Load([]string{policyPath}, nil),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, orderrs.FailedToWithDetails("compile tenant authorization policy", "control", policyPath, err)
	}
	return &TenantAuthorizer{query: q}, nil
}

// Authorize reports whether tenantID/userID may act on caseID. A
// compile-clean policy that simply returns false is a normal "forbidden"
// result; only a query-evaluation failure itself is an error.
func (a *TenantAuthorizer) Authorize(ctx context.Context, tenantID, userID, caseID string) (bool, error) {
	input := map[string]any{
		"tenant_id": tenantID,
		"user_id":   userID,
		"case_id":   caseID,
	}
	rs, err := a.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return false, orderrs.WithCode(orderrs.FailedTo("evaluate tenant authorization policy", err), orderrs.CodeInvalidRequest)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, nil
	}
	allowed, ok := rs[0].Expressions[0].Value.(bool)
	if !ok {
		return false, orderrs.WithCode(orderrs.FailedTo("evaluate tenant authorization policy", fmt.Errorf("policy did not return a boolean")), orderrs.CodeInvalidRequest)
	}
	return allowed, nil
}
