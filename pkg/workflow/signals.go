package workflow

import (
	"go.temporal.io/sdk/workflow"

	"github.com/orderflow/core/pkg/orders"
)

// signalChannels holds the four named signal channels for the lifetime
// of one workflow execution.
type signalChannels struct {
	fileReuploaded workflow.ReceiveChannel
	corrections    workflow.ReceiveChannel
	selections     workflow.ReceiveChannel
	approval       workflow.ReceiveChannel
}

func newSignalChannels(ctx workflow.Context) signalChannels {
	return signalChannels{
		fileReuploaded: workflow.GetSignalChannel(ctx, SignalFileReuploaded),
		corrections:    workflow.GetSignalChannel(ctx, SignalCorrectionsSubmitted),
		selections:     workflow.GetSignalChannel(ctx, SignalSelectionsSubmitted),
		approval:       workflow.GetSignalChannel(ctx, SignalApprovalReceived),
	}
}

// signalEnvelope carries whichever one of the four signal payloads was
// received.
type signalEnvelope struct {
	name                 string
	fileReuploaded       *FileReuploaded
	correctionsSubmitted *CorrectionsSubmitted
	selectionsSubmitted  *SelectionsSubmitted
	approvalReceived     *ApprovalReceived
}

// SignalAccepted reports whether a signal named name would be honored by
// a case currently at status, for the control surface's 409 decision
// without duplicating the per-signal acceptance table.
func SignalAccepted(status orders.Status, name string) bool {
	return relevant(status, name)
}

// relevant reports whether signal is honored while the case is in
// status (the per-signal "only honored while ..." clauses).
func relevant(status orders.Status, signal string) bool {
	switch signal {
	case SignalFileReuploaded:
		return status == orders.StatusParsing
	case SignalCorrectionsSubmitted:
		return status == orders.StatusAwaitingCorrections
	case SignalSelectionsSubmitted:
		return status == orders.StatusAwaitingCustomerSelection || status == orders.StatusAwaitingItemSelection
	case SignalApprovalReceived:
		return status == orders.StatusAwaitingApproval
	default:
		return false
	}
}

// awaitRelevantSignal blocks until a signal honored by status arrives or
// the per-run deadline fires. Every delivery is logged — signal.ignored
// for ones not honored by the current status, which are otherwise
// dropped and the wait resumed.
func awaitRelevantSignal(ctx workflow.Context, sc signalChannels, deadline workflow.Future, caseID string, status orders.Status) (signalEnvelope, bool, error) {
	for {
		var env signalEnvelope
		timedOut := false

		sel := workflow.NewSelector(ctx)
		sel.AddReceive(sc.fileReuploaded, func(c workflow.ReceiveChannel, more bool) {
			var p FileReuploaded
			c.Receive(ctx, &p)
			env = signalEnvelope{name: SignalFileReuploaded, fileReuploaded: &p}
		})
		sel.AddReceive(sc.corrections, func(c workflow.ReceiveChannel, more bool) {
			var p CorrectionsSubmitted
			c.Receive(ctx, &p)
			env = signalEnvelope{name: SignalCorrectionsSubmitted, correctionsSubmitted: &p}
		})
		sel.AddReceive(sc.selections, func(c workflow.ReceiveChannel, more bool) {
			var p SelectionsSubmitted
			c.Receive(ctx, &p)
			env = signalEnvelope{name: SignalSelectionsSubmitted, selectionsSubmitted: &p}
		})
		sel.AddReceive(sc.approval, func(c workflow.ReceiveChannel, more bool) {
			var p ApprovalReceived
			c.Receive(ctx, &p)
			env = signalEnvelope{name: SignalApprovalReceived, approvalReceived: &p}
		})
		sel.AddFuture(deadline, func(f workflow.Future) {
			timedOut = true
		})
		sel.Select(ctx)

		if timedOut {
			return signalEnvelope{}, true, nil
		}

		honored := relevant(status, env.name)
		if err := workflow.ExecuteActivity(ctx, a.RecordSignal, RecordSignalInput{
			CaseID:  caseID,
			Name:    env.name,
			Honored: honored,
		}).Get(ctx, nil); err != nil {
			return signalEnvelope{}, false, err
		}
		if honored {
			return env, false, nil
		}
	}
}
