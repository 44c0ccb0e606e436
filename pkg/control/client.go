package control

import (
	"context"
	"errors"

	"go.temporal.io/api/workflowservice/v1"
	"go.temporal.io/sdk/client"
)

// ErrWorkflowAlreadyStarted is the sentinel ExecuteWorkflow should wrap
// its error as when the requested case_id already has a running
// execution (the "409 if the case_id already exists"). A real
// go.temporal.io/sdk/client.Client does not return this sentinel
// directly — ClientAdapter (engineadapter.go) translates the
// SDK's own *temporal.WorkflowExecutionAlreadyStartedError into it, so
// this package never needs to import the SDK's internal error
// hierarchy to make that one decision.
var ErrWorkflowAlreadyStarted = errors.New("workflow already started")

// EngineClient is the narrow slice of go.temporal.io/sdk/client.Client
// the control surface needs. A real client.Client does not satisfy it
// directly (its QueryWorkflow returns converter.EncodedValue), so
// production code wraps one in ClientAdapter; tests substitute a fake so server_test.go never dials a Temporal
// service.
type EngineClient interface {
	ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflowFunc interface{}, args ...interface{}) (client.WorkflowRun, error)
	SignalWorkflow(ctx context.Context, workflowID, runID, signalName string, arg interface{}) error
	QueryWorkflow(ctx context.Context, workflowID, runID, queryType string, args ...interface{}) (EncodedValue, error)
	TerminateWorkflow(ctx context.Context, workflowID, runID, reason string, details ...interface{}) error
	CancelWorkflow(ctx context.Context, workflowID, runID string) error
	DescribeWorkflowExecution(ctx context.Context, workflowID, runID string) (*workflowservice.DescribeWorkflowExecutionResponse, error)
	CheckHealth(ctx context.Context, request *client.CheckHealthRequest) (*client.CheckHealthResponse, error)
}

// EncodedValue mirrors go.temporal.io/sdk/converter.EncodedValue, named
// locally so this package's public interface doesn't force every caller
// to import the converter package just to satisfy EngineClient.
type EncodedValue interface {
	Get(valuePtr interface{}) error
}
