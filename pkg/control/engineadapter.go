package control

import (
	"context"
	"errors"

	"go.temporal.io/api/workflowservice/v1"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
)

// ClientAdapter wraps a real go.temporal.io/sdk/client.Client so it
// satisfies EngineClient: it translates the SDK's own
// *temporal.WorkflowExecutionAlreadyStartedError into this package's
// ErrWorkflowAlreadyStarted sentinel, and narrows QueryWorkflow's
// converter.EncodedValue return into the local EncodedValue interface.
type ClientAdapter struct {
	Client client.Client
}

func NewClientAdapter(c client.Client) *ClientAdapter {
	return &ClientAdapter{Client: c}
}

func (a *ClientAdapter) ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflowFunc interface{}, args ...interface{}) (client.WorkflowRun, error) {
	run, err := a.Client.ExecuteWorkflow(ctx, options, workflowFunc, args...)
	if err != nil {
		var already *temporal.WorkflowExecutionAlreadyStartedError
		if errors.As(err, &already) {
			return nil, ErrWorkflowAlreadyStarted
		}
		return nil, err
	}
	return run, nil
}

func (a *ClientAdapter) SignalWorkflow(ctx context.Context, workflowID, runID, signalName string, arg interface{}) error {
	return a.Client.SignalWorkflow(ctx, workflowID, runID, signalName, arg)
}

func (a *ClientAdapter) QueryWorkflow(ctx context.Context, workflowID, runID, queryType string, args ...interface{}) (EncodedValue, error) {
	return a.Client.QueryWorkflow(ctx, workflowID, runID, queryType, args...)
}

func (a *ClientAdapter) TerminateWorkflow(ctx context.Context, workflowID, runID, reason string, details ...interface{}) error {
	return a.Client.TerminateWorkflow(ctx, workflowID, runID, reason, details...)
}

func (a *ClientAdapter) CancelWorkflow(ctx context.Context, workflowID, runID string) error {
	return a.Client.CancelWorkflow(ctx, workflowID, runID)
}

func (a *ClientAdapter) DescribeWorkflowExecution(ctx context.Context, workflowID, runID string) (*workflowservice.DescribeWorkflowExecutionResponse, error) {
	return a.Client.DescribeWorkflowExecution(ctx, workflowID, runID)
}

func (a *ClientAdapter) CheckHealth(ctx context.Context, request *client.CheckHealthRequest) (*client.CheckHealthResponse, error) {
	return a.Client.CheckHealth(ctx, request)
}
