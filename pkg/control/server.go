// Package control implements the T2 control surface: a thin
// synchronous HTTP layer that validates, authorizes, and forwards
// start/signal/query/terminate/cancel calls to the Temporal engine, plus
// health/ready/live probes.
package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/orderflow/core/internal/config"
	"github.com/orderflow/core/pkg/orders"
	orderrs "github.com/orderflow/core/pkg/shared/errors"
	"github.com/orderflow/core/pkg/workflow"
)

// Server is the T2 control surface's HTTP handler.
type Server struct {
	router  chi.Router
	engine  EngineClient
	authz   *TenantAuthorizer
	cfg     config.WorkflowConfig
	logger  *zap.Logger
	baseURL string
}

// NewServer wires the chi router and its middleware; baseURL is used to
// build the status_url/signal_url_template/terminate_url a start
// response returns.
func NewServer(engine EngineClient, authz *TenantAuthorizer, cfg config.WorkflowConfig, logger *zap.Logger, baseURL string) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		engine:  engine,
		authz:   authz,
		cfg:     cfg,
		logger:  logger,
		baseURL: baseURL,
	}
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: false,
	}))
	s.routes()
	return s
}

func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) routes() {
	s.router.Post("/workflow/start", s.handleStart)
	s.router.Get("/workflow/{id}/status", s.handleStatus)
	s.router.Post("/workflow/{id}/signal/{name}", s.handleSignal)
	s.router.Post("/workflow/{id}/terminate", s.handleTerminate)
	s.router.Post("/workflow/{id}/cancel", s.handleCancel)
	s.router.Get("/workflow/{id}/query/{name}", s.handleQuery)
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/ready", s.handleReady)
	s.router.Get("/live", s.handleLive)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, orderrs.CodeInvalidRequest, "malformed request body")
		return
	}
	if err := validateStruct(req); err != nil {
		writeError(w, http.StatusBadRequest, orderrs.CodeValidationFailed, err.Error())
		return
	}

	ctx := r.Context()
	allowed, err := s.authz.Authorize(ctx, req.TenantID, req.UserID, req.CaseID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, orderrs.CodeInvariantViolated, "authorization check failed")
		return
	}
	if !allowed {
		writeError(w, http.StatusForbidden, orderrs.CodeTenantForbidden, "tenant is not authorized for this case")
		return
	}

	in := workflow.NewResumeInput(workflow.StartInput{
		CaseID:           req.CaseID,
		TenantID:         req.TenantID,
		UserID:           req.UserID,
		CorrelationID:    req.CorrelationID,
		ChatThreadHandle: req.CaseID,
		BlobURI:          req.BlobURI,
	})

	_, err = s.engine.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:                  req.CaseID,
		TaskQueue:            s.cfg.TaskQueue,
		WorkflowExecutionTimeout: s.cfg.ExecutionTimeout,
		WorkflowRunTimeout:       s.cfg.RunTimeout,
		WorkflowTaskTimeout:      s.cfg.TaskTimeout,
	}, workflow.OrderIntakeWorkflow, in)
	if err != nil {
		if errors.Is(err, ErrWorkflowAlreadyStarted) {
			writeError(w, http.StatusConflict, orderrs.CodeInvalidRequest, "case_id already exists")
			return
		}
		s.logger.Error("start workflow failed", zap.String("case_id", req.CaseID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, orderrs.CodeInvariantViolated, "failed to start workflow")
		return
	}

	writeJSON(w, http.StatusAccepted, StartResponse{
		WorkflowID:        req.CaseID,
		StatusURL:         fmt.Sprintf("%s/workflow/%s/status", s.baseURL, req.CaseID),
		SignalURLTemplate: fmt.Sprintf("%s/workflow/%s/signal/{name}", s.baseURL, req.CaseID),
		TerminateURL:      fmt.Sprintf("%s/workflow/%s/terminate", s.baseURL, req.CaseID),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := r.Context()

	desc, err := s.engine.DescribeWorkflowExecution(ctx, id, "")
	if err != nil {
		writeError(w, http.StatusNotFound, orderrs.CodeInvalidRequest, "unknown workflow id")
		return
	}

	info := desc.GetWorkflowExecutionInfo()
	resp := StatusResponse{
		WorkflowID: id,
		Status:     queryCaseStatus(ctx, s.engine, id),
	}
	if info != nil {
		if t := info.GetStartTime(); t != nil {
			resp.CreatedAt = t.AsTime().UTC().Format(time.RFC3339)
		}
		if t := info.GetCloseTime(); t != nil {
			resp.UpdatedAt = t.AsTime().UTC().Format(time.RFC3339)
		} else if t := info.GetStartTime(); t != nil {
			resp.UpdatedAt = t.AsTime().UTC().Format(time.RFC3339)
		}
		resp.HistoryLength = info.GetHistoryLength()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSignal(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	name := chi.URLParam(r, "name")
	ctx := r.Context()

	payload, err := decodeSignalPayload(name, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, orderrs.CodeInvalidRequest, err.Error())
		return
	}

	status := queryCaseStatus(ctx, s.engine, id)
	accepted := workflow.SignalAccepted(status, name)

	if err := s.engine.SignalWorkflow(ctx, id, "", name, payload); err != nil {
		writeError(w, http.StatusNotFound, orderrs.CodeInvalidRequest, "unknown workflow id")
		return
	}

	if !accepted {
		writeError(w, http.StatusConflict, orderrs.CodeInvalidRequest, "signal not accepted in the workflow's current status")
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleTerminate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req TerminateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, orderrs.CodeInvalidRequest, "malformed request body")
		return
	}
	if err := s.engine.TerminateWorkflow(r.Context(), id, "", req.Reason); err != nil {
		writeError(w, http.StatusNotFound, orderrs.CodeInvalidRequest, "unknown workflow id")
		return
	}
	writeJSON(w, http.StatusOK, TerminateResponse{Status: "terminated"})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.engine.CancelWorkflow(r.Context(), id, ""); err != nil {
		writeError(w, http.StatusNotFound, orderrs.CodeInvalidRequest, "unknown workflow id")
		return
	}
	writeJSON(w, http.StatusOK, TerminateResponse{Status: "cancel_requested"})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	name := chi.URLParam(r, "name")
	val, err := s.engine.QueryWorkflow(r.Context(), id, "", name)
	if err != nil {
		writeError(w, http.StatusNotFound, orderrs.CodeInvalidRequest, "unknown workflow id or query")
		return
	}
	var state workflow.QueryState
	if err := val.Get(&state); err != nil {
		writeError(w, http.StatusInternalServerError, orderrs.CodeInvariantViolated, "failed to decode query result")
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "live"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if _, err := s.engine.CheckHealth(ctx, &client.CheckHealthRequest{}); err != nil {
		writeError(w, http.StatusServiceUnavailable, orderrs.CodeCatalogUnavailable, "engine backend unreachable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// queryCaseStatus best-effort queries the workflow's current status for
// the signal-acceptance and status-response decisions above; a query
// failure (e.g. the workflow already completed) degrades to an empty
// status rather than failing the whole request.
func queryCaseStatus(ctx context.Context, engine EngineClient, id string) orders.Status {
	val, err := engine.QueryWorkflow(ctx, id, "", workflow.QueryName)
	if err != nil {
		return ""
	}
	var state workflow.QueryState
	if err := val.Get(&state); err != nil {
		return ""
	}
	return state.Status
}

func decodeSignalPayload(name string, r *http.Request) (any, error) {
	switch name {
	case workflow.SignalFileReuploaded:
		var p workflow.FileReuploaded
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			return nil, err
		}
		return p, nil
	case workflow.SignalCorrectionsSubmitted:
		var p workflow.CorrectionsSubmitted
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			return nil, err
		}
		return p, nil
	case workflow.SignalSelectionsSubmitted:
		var p workflow.SelectionsSubmitted
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			return nil, err
		}
		return p, nil
	case workflow.SignalApprovalReceived:
		var p workflow.ApprovalReceived
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown signal %q", name)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code orderrs.Code, message string) {
	writeJSON(w, status, ErrorResponse{Code: string(code), Message: message})
}

