package workflow

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/workflow"

	"github.com/orderflow/core/pkg/catalog"
	"github.com/orderflow/core/pkg/committee"
	"github.com/orderflow/core/pkg/orders"
)

// ReminderInterval is how often a human-wait status re-notifies a
// case's chat thread ("the engine emits reminder
// notifications at configured intervals"). Reminder scheduling itself
// is left to the control surface's operator tooling; this constant is
// the value it should poll against.
const ReminderInterval = 4 * time.Hour

// a is a nil *Activities used only to obtain typed method values for
// workflow.ExecuteActivity; Temporal resolves activities by name via
// reflection and never dereferences the receiver in workflow context.
var a *Activities

// OrderIntakeWorkflow implements the T1 durable pipeline:
// an eight-step state machine reactive to four named signals, reentered
// via continue-as-new both on blocked-file re-upload and on the 12-hour
// per-run timeout.
func OrderIntakeWorkflow(ctx workflow.Context, in ResumeInput) error {
	logger := workflow.GetLogger(ctx)
	st := in

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: ActivityStartToCloseTimeout,
		RetryPolicy:         standardRetryPolicy(),
	})
	aggressiveCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: ActivityStartToCloseTimeout,
		RetryPolicy:         aggressiveRetryPolicy(),
	})

	if err := workflow.SetQueryHandler(ctx, QueryName, func() (QueryState, error) {
		return QueryState{
			CaseID:            st.CaseID,
			Status:            st.Status,
			CorrelationID:     st.CorrelationID,
			VerdictSummary:    st.Verdict,
			ResolvedCustomer:  st.ResolvedCustomer,
			ExternalDraftID:   st.ExternalDraftID,
			PreviousExecution: st.PreviousExecution,
		}, nil
	}); err != nil {
		return err
	}

	sc := newSignalChannels(ctx)
	deadline := workflow.NewTimer(ctx, PerRunTimeout)

	persist := func() error {
		return workflow.ExecuteActivity(ctx, a.PersistCase, toCase(st)).Get(ctx, nil)
	}
	transition := func(next orders.Status) error {
		st.Status = next
		return persist()
	}
	notify := func(subject, body string) error {
		return workflow.ExecuteActivity(ctx, a.Notify, NotifyInput{
			CaseID:           st.CaseID,
			ChatThreadHandle: st.ChatThreadHandle,
			Subject:          subject,
			Body:             body,
		}).Get(ctx, nil)
	}
	fail := func(cause error) error {
		st.Status = orders.StatusFailed
		_ = persist()
		_ = notify("failed", cause.Error())
		_ = finalizeAuditBundle(ctx, st, orders.StatusFailed)
		return cause
	}
	await := func() (signalEnvelope, bool, error) {
		return awaitRelevantSignal(ctx, sc, deadline, st.CaseID, st.Status)
	}

	for !st.Status.Terminal() {
		switch st.Status {

		case orders.StatusStoringFile:
			if err := persist(); err != nil {
				return err
			}
			var out StoreFileOutput
			if err := workflow.ExecuteActivity(ctx, a.StoreFile, StoreFileInput{
				CaseID:  st.CaseID,
				FileURI: st.BlobURI,
			}).Get(ctx, &out); err != nil {
				return fail(err)
			}
			st.FileSHA256 = out.SHA256
			if err := transition(orders.StatusParsing); err != nil {
				return err
			}
			if err := runParse(ctx, &st, out.Content); err != nil {
				return fail(err)
			}
			if st.Status == orders.StatusRunningCommittee {
				if err := persist(); err != nil {
					return err
				}
			}
			if st.Status == orders.StatusParsing {
				// blocked: wait for FileReuploaded, which always continues-as-new.
				env, timedOut, err := await()
				if err != nil {
					return fail(err)
				}
				if timedOut {
					return continueAsNewSameStatus(ctx, st)
				}
				st.BlobURI = env.fileReuploaded.NewBlobURI
				st.CorrelationID = env.fileReuploaded.CorrelationID
				st.PreviousExecution = workflow.GetInfo(ctx).WorkflowExecution.ID
				st.Status = orders.StatusStoringFile
				return workflow.NewContinueAsNewError(ctx, OrderIntakeWorkflow, st)
			}

		case orders.StatusRunningCommittee:
			pack := buildEvidencePack(st)
			var out RunCommitteeOutput
			if err := workflow.ExecuteActivity(ctx, a.RunCommittee, RunCommitteeInput{
				CaseID:  st.CaseID,
				Version: st.Version,
				Pack:    pack,
			}).Get(ctx, &out); err != nil {
				return fail(err)
			}
			st.Verdict = &out.Verdict
			if out.Verdict.NeedsHuman {
				if err := transition(orders.StatusAwaitingCorrections); err != nil {
					return err
				}
				if err := notify("needs_human_input", "the review committee could not reach consensus and needs a correction"); err != nil {
					return fail(err)
				}
				continue
			}
			if err := transition(orders.StatusResolvingCustomer); err != nil {
				return err
			}

		case orders.StatusAwaitingCorrections:
			env, timedOut, err := await()
			if err != nil {
				return fail(err)
			}
			if timedOut {
				return continueAsNewSameStatus(ctx, st)
			}
			var out ParseOutput
			if err := workflow.ExecuteActivity(ctx, a.ApplyCorrections, ApplyCorrectionsInput{
				CaseID:              st.CaseID,
				PreviousVersionPath: st.CanonicalOrderPath,
				Patches:             env.correctionsSubmitted.Patches,
				NextVersion:         st.Version + 1,
			}).Get(ctx, &out); err != nil {
				return fail(err)
			}
			st.Version = out.Order.Version
			st.CanonicalOrderPath = out.CanonicalOrderPath
			st.Order = out.Order
			if err := transition(orders.StatusRunningCommittee); err != nil {
				return err
			}

		case orders.StatusResolvingCustomer:
			var out ResolveCustomerOutput
			if err := workflow.ExecuteActivity(ctx, a.ResolveCustomer, ResolveCustomerInput{
				CaseID:   st.CaseID,
				TenantID: st.TenantID,
				Name:     st.Order.Customer.FreeText,
			}).Get(ctx, &out); err != nil {
				return fail(err)
			}
			if out.Result.Resolved != nil {
				st.ResolvedCustomer = &orders.ResolvedEntity{
					ID:         out.Result.Resolved.ID,
					Name:       out.Result.Resolved.Name,
					MatchedBy:  "match",
					Confidence: out.Result.Resolved.Score,
				}
				st.ResolvedCustomerID = out.Result.Resolved.ID
				if err := transition(orders.StatusResolvingItems); err != nil {
					return err
				}
				continue
			}
			if err := transition(orders.StatusAwaitingCustomerSelection); err != nil {
				return err
			}
			if err := notify("needs_customer_selection", "the customer on this order could not be resolved automatically"); err != nil {
				return fail(err)
			}

		case orders.StatusAwaitingCustomerSelection:
			env, timedOut, err := await()
			if err != nil {
				return fail(err)
			}
			if timedOut {
				return continueAsNewSameStatus(ctx, st)
			}
			if env.selectionsSubmitted.Customer != "" {
				st.ResolvedCustomer = &orders.ResolvedEntity{
					ID:         env.selectionsSubmitted.Customer,
					MatchedBy:  "user_selection",
					Confidence: 1,
				}
				st.ResolvedCustomerID = env.selectionsSubmitted.Customer
			}
			if err := transition(orders.StatusResolvingItems); err != nil {
				return err
			}

		case orders.StatusResolvingItems:
			var out ResolveItemsOutput
			if err := workflow.ExecuteActivity(ctx, a.ResolveItems, ResolveItemsInput{
				CaseID:   st.CaseID,
				TenantID: st.TenantID,
				Lines:    st.Order.LineItems,
			}).Get(ctx, &out); err != nil {
				return fail(err)
			}
			if st.ResolvedItems == nil {
				st.ResolvedItems = make(map[int]*orders.ResolvedEntity)
			}
			unresolved := false
			for _, r := range out.Resolutions {
				if r.Result.Resolved != nil {
					st.ResolvedItems[r.LineNumber] = &orders.ResolvedEntity{
						ID:         r.Result.Resolved.ID,
						Name:       r.Result.Resolved.Name,
						MatchedBy:  "match",
						Confidence: r.Result.Resolved.Score,
						Price:      r.Result.Resolved.Price,
					}
				} else {
					unresolved = true
				}
			}
			if unresolved {
				if err := transition(orders.StatusAwaitingItemSelection); err != nil {
					return err
				}
				if err := notify("needs_item_selection", "one or more order lines could not be resolved automatically"); err != nil {
					return fail(err)
				}
				continue
			}
			if err := transition(orders.StatusAwaitingApproval); err != nil {
				return err
			}
			if err := notify("ready_for_approval", "this order is ready for approval"); err != nil {
				return fail(err)
			}

		case orders.StatusAwaitingItemSelection:
			env, timedOut, err := await()
			if err != nil {
				return fail(err)
			}
			if timedOut {
				return continueAsNewSameStatus(ctx, st)
			}
			if st.ResolvedItems == nil {
				st.ResolvedItems = make(map[int]*orders.ResolvedEntity)
			}
			for line, id := range env.selectionsSubmitted.Items {
				var itemOut GetItemOutput
				if err := workflow.ExecuteActivity(ctx, a.GetItem, GetItemInput{ItemID: id}).Get(ctx, &itemOut); err != nil {
					return fail(err)
				}
				st.ResolvedItems[line] = &orders.ResolvedEntity{
					ID:        id,
					Name:      itemOut.Item.Name,
					MatchedBy: "user_selection",
					Confidence: 1,
					Price:     itemOut.Item.Price,
				}
			}
			if err := transition(orders.StatusAwaitingApproval); err != nil {
				return err
			}
			if err := notify("ready_for_approval", "this order is ready for approval"); err != nil {
				return fail(err)
			}

		case orders.StatusAwaitingApproval:
			env, timedOut, err := await()
			if err != nil {
				return fail(err)
			}
			if timedOut {
				return continueAsNewSameStatus(ctx, st)
			}
			if !env.approvalReceived.Approved {
				st.Status = orders.StatusCancelled
				if err := persist(); err != nil {
					return err
				}
				continue
			}
			if err := transition(orders.StatusCreatingDraft); err != nil {
				return err
			}

		case orders.StatusCreatingDraft:
			resolved := make(map[int]catalog.Candidate, len(st.ResolvedItems))
			for line, entity := range st.ResolvedItems {
				resolved[line] = catalog.Candidate{ID: entity.ID, Name: entity.Name, Price: entity.Price}
			}
			var out CreateDraftOutput
			err := workflow.ExecuteActivity(aggressiveCtx, a.CreateDraft, CreateDraftInput{
				CaseID:             st.CaseID,
				FileSHA256:         st.FileSHA256,
				ResolvedCustomerID: st.ResolvedCustomerID,
				Lines:              st.Order.LineItems,
				ResolvedItemPrices: resolved,
				At:                 workflow.Now(ctx),
			}).Get(ctx, &out)
			if err != nil {
				if isTransient(err) {
					st.Status = orders.StatusQueuedForRetry
					if persErr := persist(); persErr != nil {
						return persErr
					}
					return finalizeAuditBundle(ctx, st, orders.StatusQueuedForRetry)
				}
				return fail(err)
			}
			st.ExternalDraftID = out.DraftID
			if err := transition(orders.StatusCompleted); err != nil {
				return err
			}

		default:
			logger.Error("workflow entered an unknown status", "status", st.Status)
			return fail(fmt.Errorf("workflow: unknown status %q", st.Status))
		}

		if deadline.IsReady() {
			return continueAsNewSameStatus(ctx, st)
		}
	}

	switch st.Status {
	case orders.StatusCompleted:
		if err := finalizeAuditBundle(ctx, st, orders.StatusCompleted); err != nil {
			return err
		}
		return notify("complete", "order intake completed")
	case orders.StatusCancelled:
		return finalizeAuditBundle(ctx, st, orders.StatusCancelled)
	default:
		return nil
	}
}

func continueAsNewSameStatus(ctx workflow.Context, st ResumeInput) error {
	return workflow.NewContinueAsNewError(ctx, OrderIntakeWorkflow, st)
}

func runParse(ctx workflow.Context, st *ResumeInput, content []byte) error {
	var out ParseOutput
	if err := workflow.ExecuteActivity(ctx, a.Parse, ParseInput{
		CaseID:  st.CaseID,
		Content: content,
		Version: st.Version + 1,
	}).Get(ctx, &out); err != nil {
		return err
	}
	if out.Blocked {
		return workflow.ExecuteActivity(ctx, a.Notify, NotifyInput{
			CaseID:           st.CaseID,
			ChatThreadHandle: st.ChatThreadHandle,
			Subject:          "blocked_file",
			Body:             "the uploaded file was blocked: " + out.BlockedReason,
		}).Get(ctx, nil)
	}
	st.Version = out.Order.Version
	st.CanonicalOrderPath = out.CanonicalOrderPath
	st.Order = out.Order
	st.Status = orders.StatusRunningCommittee
	return nil
}

// canonicalFields are the fields the committee maps spreadsheet columns
// onto; customer/sku/gtin are the critical ones whose
// dissent always forces needs_human (orders.CriticalFields).
var canonicalFields = []string{"customer", "sku", "gtin", "description", "quantity", "unit_price"}

func buildEvidencePack(st ResumeInput) committee.EvidencePack {
	candidates := make([]committee.ColumnCandidate, 0, len(st.Order.LineItems)+1)
	candidates = append(candidates, committee.ColumnCandidate{
		ID:     "customer",
		Header: "customer",
		Sample: []string{st.Order.Customer.FreeText},
	})
	for _, l := range st.Order.LineItems {
		candidates = append(candidates, committee.ColumnCandidate{
			ID:     fmt.Sprintf("line_%d", l.LineNumber),
			Header: l.Description,
			Sample: []string{l.Description, l.SKU, l.GTIN},
		})
	}
	return committee.EvidencePack{
		CaseID:          st.CaseID,
		Candidates:      candidates,
		DetectedLanguage: st.Order.Metadata.LanguageHint,
		Fields:          canonicalFields,
	}
}

func isTransient(err error) bool {
	return activityErrorIsTransient(err)
}

func finalizeAuditBundle(ctx workflow.Context, st ResumeInput, final orders.Status) error {
	return workflow.ExecuteActivity(ctx, a.Finalize, FinalizeInput{
		CaseID:        st.CaseID,
		FinalStatus:   final,
		ArtifactPaths: []string{st.CanonicalOrderPath},
	}).Get(ctx, nil)
}

func toCase(st ResumeInput) orders.Case {
	return orders.Case{
		CaseID:             st.CaseID,
		TenantID:           st.TenantID,
		UserID:             st.UserID,
		Status:             st.Status,
		CorrelationID:      st.CorrelationID,
		CanonicalOrderPath: st.CanonicalOrderPath,
		VerdictSummary:     st.Verdict,
		ResolvedCustomer:   st.ResolvedCustomer,
		ResolvedItems:      st.ResolvedItems,
		ChatThreadHandle:   st.ChatThreadHandle,
		ExternalDraftID:    st.ExternalDraftID,
		PreviousExecution:  st.PreviousExecution,
	}
}
