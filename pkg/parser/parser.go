// Package parser declares the spreadsheet-parsing collaborator's output
// contract (the explicit non-goal: "only its output contract matters
// here" — header detection, cell normalization, and locale heuristics
// are out of scope).
package parser

import (
	"context"

	"github.com/orderflow/core/pkg/orders"
)

// BlockedReason is a closed taxonomy of reasons the parser refuses to
// produce a CanonicalOrder (the blocked-file subflow).
type BlockedReason string

const (
	BlockedReasonFormulas   BlockedReason = "formulas"
	BlockedReasonProtected  BlockedReason = "protected"
	BlockedReasonUnparsable BlockedReason = "unparsable"
	BlockedReasonTooLarge   BlockedReason = "too_large"
)

// BlockedError reports a parser refusal, carrying the reason the
// workflow needs to select the blocked-file subflow and to notify the
// uploader.
type BlockedError struct {
	Reason BlockedReason
}

func (e *BlockedError) Error() string {
	return "parser: blocked file: " + string(e.Reason)
}

// Parser converts an uploaded spreadsheet's bytes into a CanonicalOrder,
// or returns a *BlockedError when it cannot proceed at all.
type Parser interface {
	Parse(ctx context.Context, fileBytes []byte, filename string) (orders.CanonicalOrder, error)
}
