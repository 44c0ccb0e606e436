package workflow

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/orderflow/core/pkg/casestore"
	"github.com/orderflow/core/pkg/catalog"
	"github.com/orderflow/core/pkg/committee"
	"github.com/orderflow/core/pkg/corrections"
	"github.com/orderflow/core/pkg/evidence"
	"github.com/orderflow/core/pkg/eventlog"
	"github.com/orderflow/core/pkg/fingerprint"
	"github.com/orderflow/core/pkg/matching"
	"github.com/orderflow/core/pkg/notifier"
	"github.com/orderflow/core/pkg/orders"
	"github.com/orderflow/core/pkg/parser"
	orderrs "github.com/orderflow/core/pkg/shared/errors"
)

// Activities wraps every collaborator the pipeline's eight steps call
// into: evidence store, parser, committee, matching engine, catalog
// client, event log, case store, fingerprint store, and notifier. Its
// methods are registered as Temporal activities; each does its own I/O
// and returns a plain error (activity code runs outside the replayable
// workflow context, so it may freely read the clock, hit the network,
// and use real UUIDs).
type Activities struct {
	Evidence               evidence.Store
	Events                 eventlog.Store
	Cases                  casestore.Store
	Fingerprint            fingerprint.Store
	Parser                 parser.Parser
	Committee              *committee.Committee
	Matcher                *matching.Engine
	Catalog                catalog.Client
	Notifier               notifier.Notifier
	Blobs                  BlobFetcher
	FingerprintGranularity fingerprint.Granularity
}

// BlobFetcher retrieves the bytes an uploader's blob_uri points at. The
// workflow never touches the uri itself (determinism rule); only this
// activity-side collaborator does the I/O.
type BlobFetcher interface {
	Fetch(ctx context.Context, uri string) ([]byte, error)
}

// StoreFileInput/Output implement step 1.
type StoreFileInput struct {
	CaseID  string
	FileURI string
}

type StoreFileOutput struct {
	SHA256  string
	Content []byte
}

func (a *Activities) StoreFile(ctx context.Context, in StoreFileInput) (StoreFileOutput, error) {
	content, err := a.Blobs.Fetch(ctx, in.FileURI)
	if err != nil {
		return StoreFileOutput{}, orderrs.WithCode(orderrs.FailedToWithDetails("fetch uploaded blob", "blob", in.FileURI, err), orderrs.CodeStorageUnavailable)
	}

	sum, err := a.Evidence.Put(ctx, evidence.OriginalPath(in.CaseID), content)
	if err != nil {
		return StoreFileOutput{}, err
	}
	if _, err := a.Events.Append(ctx, orders.AuditEvent{
		CaseID: in.CaseID,
		Type:   orders.EventFileStored,
		Actor:  orders.Actor{Kind: "system"},
		Data:   map[string]any{"sha256": sum, "source_uri": in.FileURI},
	}); err != nil {
		return StoreFileOutput{}, err
	}
	return StoreFileOutput{SHA256: sum, Content: content}, nil
}

// ParseInput/Output implement step 2.
type ParseInput struct {
	CaseID  string
	Content []byte
	Version int
}

type ParseOutput struct {
	CanonicalOrderPath string
	Blocked            bool
	BlockedReason      string
	Order              orders.CanonicalOrder
}

func (a *Activities) Parse(ctx context.Context, in ParseInput) (ParseOutput, error) {
	order, err := a.Parser.Parse(ctx, in.Content, in.CaseID)
	if blocked, ok := err.(*parser.BlockedError); ok {
		if _, appendErr := a.Events.Append(ctx, orders.AuditEvent{
			CaseID: in.CaseID,
			Type:   orders.EventParseBlocked,
			Actor:  orders.Actor{Kind: "system"},
			Data:   map[string]any{"reason": string(blocked.Reason)},
		}); appendErr != nil {
			return ParseOutput{}, appendErr
		}
		return ParseOutput{Blocked: true, BlockedReason: string(blocked.Reason)}, nil
	}
	if err != nil {
		return ParseOutput{}, orderrs.WithCode(orderrs.FailedTo("parse uploaded file", err), orderrs.CodeParseUnparsable)
	}

	order.CaseID = in.CaseID
	order.Version = in.Version
	path, err := a.persistCanonicalOrder(ctx, order)
	if err != nil {
		return ParseOutput{}, err
	}

	if _, err := a.Events.Append(ctx, orders.AuditEvent{
		CaseID: in.CaseID,
		Type:   orders.EventParsed,
		Actor:  orders.Actor{Kind: "system"},
		Data:   map[string]any{"version": order.Version, "issue_count": len(order.Issues)},
	}); err != nil {
		return ParseOutput{}, err
	}

	return ParseOutput{CanonicalOrderPath: path, Order: order}, nil
}

func (a *Activities) persistCanonicalOrder(ctx context.Context, order orders.CanonicalOrder) (string, error) {
	b, err := json.Marshal(order)
	if err != nil {
		return "", orderrs.WithCode(orderrs.FailedTo("marshal canonical order", err), orderrs.CodeInvalidRequest)
	}
	path := evidence.CanonicalPath(order.CaseID, order.Version)
	if _, err := a.Evidence.Put(ctx, path, b); err != nil {
		return "", err
	}
	return path, nil
}

// RunCommitteeInput/Output implement step 3.
type RunCommitteeInput struct {
	CaseID  string
	Version int
	Pack    committee.EvidencePack
}

type RunCommitteeOutput struct {
	Verdict orders.CommitteeVerdict
}

func (a *Activities) RunCommittee(ctx context.Context, in RunCommitteeInput) (RunCommitteeOutput, error) {
	verdict, err := a.Committee.Run(ctx, in.CaseID, in.Version, in.Pack)
	if err != nil {
		return RunCommitteeOutput{}, err
	}
	return RunCommitteeOutput{Verdict: verdict}, nil
}

// GetItemInput/Output look up a single catalog item's current price, for
// a line whose resolution came from a user's manual SelectionsSubmitted
// rather than the matching engine (which prices resolutions itself).
type GetItemInput struct {
	ItemID string
}

type GetItemOutput struct {
	Item catalog.Candidate
}

func (a *Activities) GetItem(ctx context.Context, in GetItemInput) (GetItemOutput, error) {
	item, err := a.Catalog.GetItem(ctx, in.ItemID)
	if err != nil {
		return GetItemOutput{}, err
	}
	return GetItemOutput{Item: item}, nil
}

// ResolveCustomerInput/Output implement step 4.
type ResolveCustomerInput struct {
	CaseID   string
	TenantID string
	Name     string
}

type ResolveCustomerOutput struct {
	Result matching.Result
}

func (a *Activities) ResolveCustomer(ctx context.Context, in ResolveCustomerInput) (ResolveCustomerOutput, error) {
	result, err := a.Matcher.ResolveCustomer(ctx, in.TenantID, in.Name)
	if err != nil {
		return ResolveCustomerOutput{}, err
	}
	if result.StaleCache {
		if _, err := a.Events.Append(ctx, orders.AuditEvent{
			CaseID: in.CaseID,
			Type:   orders.EventStaleCacheServed,
			Actor:  orders.Actor{Kind: "system"},
			Data:   map[string]any{"target": "customer", "query": in.Name},
		}); err != nil {
			return ResolveCustomerOutput{}, err
		}
	}
	if _, err := a.Events.Append(ctx, orders.AuditEvent{
		CaseID: in.CaseID,
		Type:   orders.EventCustomerResolved,
		Actor:  orders.Actor{Kind: "system"},
		Data:   map[string]any{"classification": string(result.Classification)},
	}); err != nil {
		return ResolveCustomerOutput{}, err
	}
	return ResolveCustomerOutput{Result: result}, nil
}

// ResolveItemsInput/Output implement step 5. Lines are resolved
// concurrently inside this single activity, reporting one consolidated
// outcome (the "must report a single consolidated outcome").
type ResolveItemsInput struct {
	CaseID   string
	TenantID string
	Lines    []orders.LineItem
}

type LineResolution struct {
	LineNumber int
	Result     matching.Result
}

type ResolveItemsOutput struct {
	Resolutions []LineResolution
}

func (a *Activities) ResolveItems(ctx context.Context, in ResolveItemsInput) (ResolveItemsOutput, error) {
	resolutions := make([]LineResolution, len(in.Lines))
	errs := make([]error, len(in.Lines))
	done := make(chan int, len(in.Lines))

	for i, line := range in.Lines {
		go func(i int, line orders.LineItem) {
			result, err := a.Matcher.ResolveItem(ctx, in.TenantID, line.SKU, line.GTIN, line.Description)
			resolutions[i] = LineResolution{LineNumber: line.LineNumber, Result: result}
			errs[i] = err
			done <- i
		}(i, line)
	}
	for range in.Lines {
		<-done
	}
	for _, err := range errs {
		if err != nil {
			return ResolveItemsOutput{}, err
		}
	}

	staleAny := false
	for _, r := range resolutions {
		if r.Result.StaleCache {
			staleAny = true
		}
	}
	if staleAny {
		if _, err := a.Events.Append(ctx, orders.AuditEvent{
			CaseID: in.CaseID,
			Type:   orders.EventStaleCacheServed,
			Actor:  orders.Actor{Kind: "system"},
			Data:   map[string]any{"target": "items"},
		}); err != nil {
			return ResolveItemsOutput{}, err
		}
	}

	if _, err := a.Events.Append(ctx, orders.AuditEvent{
		CaseID: in.CaseID,
		Type:   orders.EventItemsResolved,
		Actor:  orders.Actor{Kind: "system"},
		Data:   map[string]any{"line_count": len(resolutions)},
	}); err != nil {
		return ResolveItemsOutput{}, err
	}

	return ResolveItemsOutput{Resolutions: resolutions}, nil
}

// NotifyInput/Output back the approval/completion/failure notification
// points threaded through steps 6 and 8.
type NotifyInput struct {
	CaseID           string
	ChatThreadHandle string
	Subject          string
	Body             string
}

func (a *Activities) Notify(ctx context.Context, in NotifyInput) error {
	return a.Notifier.Deliver(ctx, notifier.Notification{
		CaseID:           in.CaseID,
		ChatThreadHandle: in.ChatThreadHandle,
		Subject:          in.Subject,
		Body:             in.Body,
	})
}

// RecordSignalInput/RecordSignal log every signal delivery, honored or
// not ("signals arriving out-of-state are recorded to the
// event log as signal.ignored").
type RecordSignalInput struct {
	CaseID  string
	Name    string
	Honored bool
}

func (a *Activities) RecordSignal(ctx context.Context, in RecordSignalInput) error {
	eventType := orders.EventSignalIgnored
	if in.Honored {
		eventType = orders.EventSignalReceived
	}
	_, err := a.Events.Append(ctx, orders.AuditEvent{
		CaseID: in.CaseID,
		Type:   eventType,
		Actor:  orders.Actor{Kind: "user"},
		Data:   map[string]any{"signal": in.Name},
	})
	return err
}

// ApplyCorrectionsInput/Output re-run step 3's canonical order version
// in response to CorrectionsSubmitted.
type ApplyCorrectionsInput struct {
	CaseID              string
	PreviousVersionPath string
	Patches             []Patch
	NextVersion         int
}

func (a *Activities) ApplyCorrections(ctx context.Context, in ApplyCorrectionsInput) (ParseOutput, error) {
	previous, err := a.Evidence.Get(ctx, in.PreviousVersionPath)
	if err != nil {
		return ParseOutput{}, err
	}

	patches := make([]corrections.Patch, len(in.Patches))
	for i, p := range in.Patches {
		patches[i] = corrections.Patch{Path: p.Path, Value: p.Value}
	}
	corrected, err := corrections.Apply(ctx, previous, patches)
	if err != nil {
		return ParseOutput{}, err
	}

	var order orders.CanonicalOrder
	if err := json.Unmarshal(corrected, &order); err != nil {
		return ParseOutput{}, orderrs.WithCode(orderrs.FailedTo("unmarshal corrected canonical order", err), orderrs.CodeInvalidRequest)
	}
	order.Version = in.NextVersion

	path, err := a.persistCanonicalOrder(ctx, order)
	if err != nil {
		return ParseOutput{}, err
	}
	if _, err := a.Events.Append(ctx, orders.AuditEvent{
		CaseID: in.CaseID,
		Type:   orders.EventCorrectionApplied,
		Actor:  orders.Actor{Kind: "user"},
		Data:   map[string]any{"new_version": order.Version},
	}); err != nil {
		return ParseOutput{}, err
	}
	return ParseOutput{CanonicalOrderPath: path, Order: order}, nil
}

// CreateDraftInput/Output implement step 7.
type CreateDraftInput struct {
	CaseID             string
	FileSHA256         string
	ResolvedCustomerID string
	Lines              []orders.LineItem
	ResolvedItemPrices map[int]catalog.Candidate // line number -> resolved catalog item
	At                 time.Time
}

type CreateDraftOutput struct {
	DraftID     string
	IsDuplicate bool
}

func (a *Activities) CreateDraft(ctx context.Context, in CreateDraftInput) (CreateDraftOutput, error) {
	fp := fingerprint.Compute(in.FileSHA256, in.ResolvedCustomerID, in.Lines, in.At, a.FingerprintGranularity)

	if draftID, found, err := a.Fingerprint.Lookup(ctx, fp); err != nil {
		return CreateDraftOutput{}, wrapActivityError(err)
	} else if found {
		return CreateDraftOutput{DraftID: draftID, IsDuplicate: true}, nil
	}

	lines := make([]catalog.DraftLineInput, 0, len(in.Lines))
	for _, line := range in.Lines {
		item, ok := in.ResolvedItemPrices[line.LineNumber]
		if !ok {
			return CreateDraftOutput{}, orderrs.New("create draft", "workflow", fmt.Sprintf("line-%d", line.LineNumber), orderrs.CodeItemsUnresolved, fmt.Errorf("no resolved catalog item for line %d", line.LineNumber))
		}
		lines = append(lines, catalog.DraftLineInput{ItemID: item.ID, Quantity: line.Quantity, Price: item.Price})
	}

	result, err := a.Catalog.CreateDraft(ctx, catalog.DraftPayload{CustomerID: in.ResolvedCustomerID, Lines: lines}, string(fp))
	if err != nil {
		return CreateDraftOutput{}, wrapActivityError(err)
	}

	winningDraftID, wasFirst, err := a.Fingerprint.Register(ctx, fp, result.DraftID, nil)
	if err != nil {
		return CreateDraftOutput{}, wrapActivityError(err)
	}

	eventType := orders.EventDraftCreated
	if !wasFirst {
		eventType = orders.EventDraftDuplicate
	}
	if _, err := a.Events.Append(ctx, orders.AuditEvent{
		CaseID: in.CaseID,
		Type:   eventType,
		Actor:  orders.Actor{Kind: "system"},
		Data:   map[string]any{"draft_id": winningDraftID, "fingerprint": string(fp)},
	}); err != nil {
		return CreateDraftOutput{}, err
	}

	return CreateDraftOutput{DraftID: winningDraftID, IsDuplicate: !wasFirst}, nil
}

// FinalizeInput/Output implement step 8: seal the audit bundle.
type FinalizeInput struct {
	CaseID        string
	FinalStatus   orders.Status
	ArtifactPaths []string
}

func (a *Activities) Finalize(ctx context.Context, in FinalizeInput) error {
	artifacts := make([]orders.AuditArtifact, 0, len(in.ArtifactPaths))
	for _, path := range in.ArtifactPaths {
		data, err := a.Evidence.Get(ctx, path)
		if err != nil {
			return err
		}
		sum := sha256.Sum256(data)
		artifacts = append(artifacts, orders.AuditArtifact{Path: path, SHA256: hex.EncodeToString(sum[:])})
	}

	bundle := orders.AuditBundle{
		CaseID:      in.CaseID,
		Artifacts:   artifacts,
		FinalStatus: in.FinalStatus,
		FinalizedAt: time.Now().UTC(),
	}
	b, err := json.Marshal(bundle)
	if err != nil {
		return orderrs.WithCode(orderrs.FailedTo("marshal audit bundle", err), orderrs.CodeInvalidRequest)
	}
	if _, err := a.Evidence.Put(ctx, evidence.AuditManifestPath(in.CaseID), b); err != nil {
		return err
	}

	var completionEvent orders.EventType
	switch in.FinalStatus {
	case orders.StatusCompleted:
		completionEvent = orders.EventWorkflowCompleted
	case orders.StatusCancelled:
		completionEvent = orders.EventWorkflowCancelled
	default:
		completionEvent = orders.EventWorkflowFailed
	}
	_, err = a.Events.Append(ctx, orders.AuditEvent{
		CaseID: in.CaseID,
		Type:   completionEvent,
		Actor:  orders.Actor{Kind: "system"},
	})
	return err
}

// PersistCase upserts the case snapshot in the case store, used by the
// workflow after every status transition so queries served outside the
// workflow (and a restarted control surface) see current state. It also
// appends a status.changed event, so every status transition produces
// exactly one event-log entry.
func (a *Activities) PersistCase(ctx context.Context, c orders.Case) error {
	existing, err := a.Cases.Get(ctx, c.CaseID)
	if err != nil {
		if appendErr := a.appendStatusChanged(ctx, c.CaseID, "", c.Status); appendErr != nil {
			return appendErr
		}
		return a.Cases.Create(ctx, &c)
	}
	if existing.Status != c.Status {
		if err := a.appendStatusChanged(ctx, c.CaseID, existing.Status, c.Status); err != nil {
			return err
		}
	}
	return a.Cases.Update(ctx, &c)
}

func (a *Activities) appendStatusChanged(ctx context.Context, caseID string, from, to orders.Status) error {
	_, err := a.Events.Append(ctx, orders.AuditEvent{
		CaseID: caseID,
		Type:   orders.EventStatusChanged,
		Actor:  orders.Actor{Kind: "system"},
		Data:   map[string]any{"from": string(from), "to": string(to)},
	})
	return err
}
