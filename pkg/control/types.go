package control

import "github.com/orderflow/core/pkg/orders"

// StartRequest is POST /workflow/start's body.
type StartRequest struct {
	CaseID        string            `json:"case_id" validate:"required"`
	BlobURI       string            `json:"blob_uri" validate:"required,uri"`
	TenantID      string            `json:"tenant_id" validate:"required"`
	UserID        string            `json:"user_id" validate:"required"`
	CorrelationID string            `json:"correlation_id"`
	ChatContext   map[string]string `json:"chat_context"`
}

// StartResponse is returned 202 on acceptance.
type StartResponse struct {
	WorkflowID        string `json:"workflow_id"`
	StatusURL         string `json:"status_url"`
	SignalURLTemplate string `json:"signal_url_template"`
	TerminateURL      string `json:"terminate_url"`
}

// StatusResponse is GET /workflow/{id}/status's body.
type StatusResponse struct {
	WorkflowID    string        `json:"workflow_id"`
	Status        orders.Status `json:"status"`
	CreatedAt     string        `json:"created_at"`
	UpdatedAt     string        `json:"updated_at"`
	HistoryLength int64         `json:"history_length"`
	Result        any           `json:"result,omitempty"`
}

// TerminateRequest is POST /workflow/{id}/terminate's body; /cancel reads
// no body.
type TerminateRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// TerminateResponse acknowledges a terminate/cancel call.
type TerminateResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
