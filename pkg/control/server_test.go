package control

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	temporalworkflow "go.temporal.io/api/workflow/v1"
	"go.temporal.io/api/workflowservice/v1"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/orderflow/core/internal/config"
	"github.com/orderflow/core/pkg/orders"
	"github.com/orderflow/core/pkg/workflow"
)

type fakeWorkflowRun struct{ id, runID string }

func (f fakeWorkflowRun) GetID() string    { return f.id }
func (f fakeWorkflowRun) GetRunID() string { return f.runID }
func (f fakeWorkflowRun) Get(ctx context.Context, valuePtr interface{}) error { return nil }
func (f fakeWorkflowRun) GetWithOptions(ctx context.Context, valuePtr interface{}, options client.WorkflowRunGetOptions) error {
	return nil
}

type fakeEncodedValue struct {
	state workflow.QueryState
}

func (f fakeEncodedValue) Get(valuePtr interface{}) error {
	ptr, ok := valuePtr.(*workflow.QueryState)
	if !ok {
		return nil
	}
	*ptr = f.state
	return nil
}

type fakeEngine struct {
	existingCase string
	status       orders.Status
	signaled     []string
	terminated   bool
	cancelled    bool
	healthy      bool
}

func (f *fakeEngine) ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflowFunc interface{}, args ...interface{}) (client.WorkflowRun, error) {
	if options.ID == f.existingCase {
		return nil, ErrWorkflowAlreadyStarted
	}
	return fakeWorkflowRun{id: options.ID}, nil
}

func (f *fakeEngine) SignalWorkflow(ctx context.Context, workflowID, runID, signalName string, arg interface{}) error {
	f.signaled = append(f.signaled, signalName)
	return nil
}

func (f *fakeEngine) QueryWorkflow(ctx context.Context, workflowID, runID, queryType string, args ...interface{}) (EncodedValue, error) {
	return fakeEncodedValue{state: workflow.QueryState{CaseID: workflowID, Status: f.status}}, nil
}

func (f *fakeEngine) TerminateWorkflow(ctx context.Context, workflowID, runID, reason string, details ...interface{}) error {
	f.terminated = true
	return nil
}

func (f *fakeEngine) CancelWorkflow(ctx context.Context, workflowID, runID string) error {
	f.cancelled = true
	return nil
}

func (f *fakeEngine) DescribeWorkflowExecution(ctx context.Context, workflowID, runID string) (*workflowservice.DescribeWorkflowExecutionResponse, error) {
	return &workflowservice.DescribeWorkflowExecutionResponse{
		WorkflowExecutionInfo: &temporalworkflow.WorkflowExecutionInfo{
			HistoryLength: 7,
		},
	}, nil
}

func (f *fakeEngine) CheckHealth(ctx context.Context, request *client.CheckHealthRequest) (*client.CheckHealthResponse, error) {
	if !f.healthy {
		return nil, errUnhealthy
	}
	return &client.CheckHealthResponse{}, nil
}

var errUnhealthy = errors.New("engine unreachable")

func noopLogger() *zap.Logger {
	return zap.NewNop()
}

func writeAllowAllPolicy(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "tenant_access.rego")
	policy := `package orderflow.authz
default allow := true
`
	require.NoError(t, os.WriteFile(path, []byte(policy), 0o644))
	return path
}

func newTestServer(t *testing.T, engine *fakeEngine) *Server {
	t.Helper()
	authz, err := NewTenantAuthorizer(context.Background(), writeAllowAllPolicy(t))
	require.NoError(t, err)
	cfg := config.Default().Workflow
	return NewServer(engine, authz, cfg, noopLogger(), "http://control.internal")
}

func TestServer_StartAccepted(t *testing.T) {
	engine := &fakeEngine{}
	s := newTestServer(t, engine)

	body, _ := json.Marshal(StartRequest{
		CaseID:   "C1",
		BlobURI:  "https://uploads.example/C1.xlsx",
		TenantID: "tenant-1",
		UserID:   "user-1",
	})
	req := httptest.NewRequest(http.MethodPost, "/workflow/start", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp StartResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "C1", resp.WorkflowID)
}

func TestServer_StartDuplicateConflicts(t *testing.T) {
	engine := &fakeEngine{existingCase: "C1"}
	s := newTestServer(t, engine)

	body, _ := json.Marshal(StartRequest{
		CaseID: "C1", BlobURI: "https://uploads.example/C1.xlsx", TenantID: "tenant-1", UserID: "user-1",
	})
	req := httptest.NewRequest(http.MethodPost, "/workflow/start", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestServer_StartValidationFailsMissingBlobURI(t *testing.T) {
	engine := &fakeEngine{}
	s := newTestServer(t, engine)

	body, _ := json.Marshal(StartRequest{CaseID: "C1", TenantID: "tenant-1", UserID: "user-1"})
	req := httptest.NewRequest(http.MethodPost, "/workflow/start", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_SignalOutOfStateConflicts(t *testing.T) {
	engine := &fakeEngine{status: orders.StatusAwaitingApproval}
	s := newTestServer(t, engine)

	body, _ := json.Marshal(workflow.CorrectionsSubmitted{SubmittedBy: "user-1"})
	req := httptest.NewRequest(http.MethodPost, "/workflow/C1/signal/"+workflow.SignalCorrectionsSubmitted, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, engine.signaled, workflow.SignalCorrectionsSubmitted, "signal should still be delivered for event-log recording")
}

func TestServer_SignalInStateAccepted(t *testing.T) {
	engine := &fakeEngine{status: orders.StatusAwaitingApproval}
	s := newTestServer(t, engine)

	body, _ := json.Marshal(workflow.ApprovalReceived{Approved: true, By: "approver-1"})
	req := httptest.NewRequest(http.MethodPost, "/workflow/C1/signal/"+workflow.SignalApprovalReceived, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
}

func TestServer_StatusReturnsHistoryLength(t *testing.T) {
	engine := &fakeEngine{status: orders.StatusRunningCommittee}
	s := newTestServer(t, engine)

	req := httptest.NewRequest(http.MethodGet, "/workflow/C1/status", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.EqualValues(t, 7, resp.HistoryLength)
	require.Equal(t, orders.StatusRunningCommittee, resp.Status)
}

func TestServer_HealthAndLive(t *testing.T) {
	engine := &fakeEngine{healthy: true}
	s := newTestServer(t, engine)

	for _, path := range []string{"/health", "/live"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		s.Router().ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestServer_ReadyReflectsEngineHealth(t *testing.T) {
	engine := &fakeEngine{healthy: false}
	s := newTestServer(t, engine)

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
