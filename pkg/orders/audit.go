package orders

import "time"

// EventType is a closed taxonomy of audit event kinds.
type EventType string

const (
	EventFileStored          EventType = "file.stored"
	EventParsed              EventType = "parse.completed"
	EventParseBlocked        EventType = "parse.blocked"
	EventCommitteeInvoked    EventType = "committee.provider_invoked"
	EventCommitteeVerdict    EventType = "committee.verdict"
	EventCustomerResolved    EventType = "customer.resolved"
	EventItemsResolved       EventType = "items.resolved"
	EventStatusChanged       EventType = "status.changed"
	EventSignalReceived      EventType = "signal.received"
	EventSignalIgnored       EventType = "signal.ignored"
	EventCorrectionApplied   EventType = "correction.applied"
	EventDraftCreated        EventType = "draft.created"
	EventDraftDuplicate      EventType = "draft.duplicate"
	EventWorkflowCompleted   EventType = "workflow_completed"
	EventWorkflowFailed      EventType = "workflow.failed"
	EventWorkflowCancelled   EventType = "workflow.cancelled"
	EventContinueAsNew       EventType = "workflow.continued_as_new"
	EventStaleCacheServed    EventType = "cache.stale_served"
)

// Actor identifies who/what caused an event.
type Actor struct {
	Kind string // "system" | "user" | "provider"
	ID   string
}

// AuditEvent is one append-only, monotonically sequenced case record.
type AuditEvent struct {
	CaseID        string
	Sequence      int64
	Timestamp     time.Time
	Type          EventType
	Actor         Actor
	CorrelationID string
	Data          map[string]any
	BlobPointer   string // set when Data was too large to inline
	BlobSHA256    string
	Redactions    []string
}

// AuditArtifact is one entry in an AuditBundle manifest.
type AuditArtifact struct {
	Path   string
	SHA256 string
}

// AuditBundle is the sealed, content-addressed manifest produced at
// terminal status.
type AuditBundle struct {
	CaseID           string
	Artifacts        []AuditArtifact
	EventLogPointer  string
	FinalStatus      Status
	FinalizedAt      time.Time
	ManifestSHA256   string
	PreviousExecution string
}

// Fingerprint is the deterministic dedup key.
type Fingerprint string
