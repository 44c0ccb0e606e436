// Package workflow implements the durable order-intake pipeline as a
// Temporal workflow: an 8-step state machine reactive to four named
// signals, with continue-as-new on blocked-file re-upload and on the
// 12-hour per-run timeout.
package workflow

import (
	"time"

	"github.com/orderflow/core/pkg/orders"
)

// StartInput starts a new case's workflow execution.
type StartInput struct {
	CaseID           string
	TenantID         string
	UserID           string
	CorrelationID    string
	ChatThreadHandle string
	BlobURI          string
}

// FileReuploaded is honored only while parsing branch is in the
// blocked-file subflow.
type FileReuploaded struct {
	NewBlobURI    string
	CorrelationID string
}

// Patch mirrors pkg/corrections.Patch at the workflow boundary, kept as
// a distinct type so the workflow package does not need to import
// pkg/corrections directly into its signal payload (itself imported by
// the activities implementation instead).
type Patch struct {
	Path  string
	Value any
}

// CorrectionsSubmitted is honored only in awaiting_corrections.
type CorrectionsSubmitted struct {
	Patches     []Patch
	SubmittedBy string
}

// SelectionsSubmitted is honored in awaiting_customer_selection or
// awaiting_item_selection.
type SelectionsSubmitted struct {
	Customer    string
	Items       map[int]string // line number -> catalog id
	SubmittedBy string
}

// ApprovalReceived is honored only in awaiting_approval.
type ApprovalReceived struct {
	Approved bool
	By       string
	Comments string
}

// ResumeInput is the workflow's single argument: it carries a fresh
// case's starting fields on the first execution, and the full
// in-flight state on every continue-as-new (either the per-run-timeout
// continuation, which resumes at the same status, or the blocked-file
// re-upload continuation, which resets to StatusStoringFile with the
// new blob uri). Keeping one argument type, rather than StartInput plus
// a side channel, is what lets workflow.NewContinueAsNewError carry
// state across executions without an external round-trip.
type ResumeInput struct {
	CaseID            string
	TenantID          string
	UserID            string
	CorrelationID     string
	ChatThreadHandle  string
	BlobURI           string
	PreviousExecution string

	Status              orders.Status
	Version             int
	CanonicalOrderPath  string
	FileSHA256          string
	Order               orders.CanonicalOrder
	Verdict             *orders.CommitteeVerdict
	ResolvedCustomer    *orders.ResolvedEntity
	ResolvedCustomerID  string
	ResolvedItems       map[int]*orders.ResolvedEntity
	ExternalDraftID     string
}

// NewResumeInput seeds a first execution's ResumeInput from the control
// surface's start request.
func NewResumeInput(in StartInput) ResumeInput {
	return ResumeInput{
		CaseID:           in.CaseID,
		TenantID:         in.TenantID,
		UserID:           in.UserID,
		CorrelationID:    in.CorrelationID,
		ChatThreadHandle: in.ChatThreadHandle,
		BlobURI:          in.BlobURI,
		Status:           orders.StatusStoringFile,
	}
}

// QueryState is what the `query` operation returns ("current
// status is exposed via query").
type QueryState struct {
	CaseID            string
	Status            orders.Status
	CorrelationID     string
	VerdictSummary    *orders.CommitteeVerdict
	ResolvedCustomer  *orders.ResolvedEntity
	ExternalDraftID   string
	PreviousExecution string
}

// Signal and query names, as seen by the control surface.
const (
	SignalFileReuploaded       = "FileReuploaded"
	SignalCorrectionsSubmitted = "CorrectionsSubmitted"
	SignalSelectionsSubmitted  = "SelectionsSubmitted"
	SignalApprovalReceived     = "ApprovalReceived"

	QueryName = "state"
)

// PerRunTimeout and OverallTimeout are the two workflow timeouts: the
// per-run timer triggers continue-as-new; the overall execution timeout
// is applied as WorkflowExecutionTimeout by the control surface when it
// starts a workflow, taken from its own configuration.
const (
	PerRunTimeout     = 12 * time.Hour
	OverallTimeout    = 24 * time.Hour
	ActivityStartToCloseTimeout = 5 * time.Minute
)
