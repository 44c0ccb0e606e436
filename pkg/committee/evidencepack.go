package committee

import (
	"encoding/json"

	"github.com/orderflow/core/pkg/notifier/sanitization"
)

// ColumnCandidate is one spreadsheet column offered to providers as a
// mapping target.
type ColumnCandidate struct {
	ID     string   `json:"id"`
	Header string   `json:"header"`
	Sample []string `json:"sample,omitempty"`
}

// ColumnStats summarizes a column's observed values, helping providers
// disambiguate columns with similar headers.
type ColumnStats struct {
	DistinctCount int     `json:"distinct_count"`
	NumericRatio  float64 `json:"numeric_ratio"`
	BlankRatio    float64 `json:"blank_ratio"`
}

// EvidencePack is the identical payload fanned out to every selected
// provider: candidate columns, sample values, per-column
// statistics, detected language, hard constraints, and the canonical
// fields to map.
type EvidencePack struct {
	CaseID           string                 `json:"case_id"`
	Candidates       []ColumnCandidate      `json:"candidates"`
	ColumnStats      map[string]ColumnStats `json:"column_stats"`
	DetectedLanguage string                 `json:"detected_language"`
	HardConstraints  []string               `json:"hard_constraints"`
	Fields           []string               `json:"fields"`
}

// candidateIDs returns the set of column ids offered in the pack, used to
// reject responses that invent column ids.
func (p EvidencePack) candidateIDs() map[string]bool {
	ids := make(map[string]bool, len(p.Candidates))
	for _, c := range p.Candidates {
		ids[c.ID] = true
	}
	return ids
}

// Redact returns a copy of the pack with secret-shaped sample values and
// headers redacted before it is ever rendered into a prompt (the // "no values resembling secrets" invariant).
func Redact(pack EvidencePack, sanitizer *sanitization.Sanitizer) EvidencePack {
	out := pack
	out.Candidates = make([]ColumnCandidate, len(pack.Candidates))
	for i, c := range pack.Candidates {
		redactedSample := make([]string, len(c.Sample))
		for j, s := range c.Sample {
			redactedSample[j] = sanitizer.Redact(s)
		}
		out.Candidates[i] = ColumnCandidate{ID: c.ID, Header: sanitizer.Redact(c.Header), Sample: redactedSample}
	}
	return out
}

// RenderPrompt serializes the pack as the JSON evidence block a provider's
// prompt template embeds.
func RenderPrompt(pack EvidencePack) (string, error) {
	b, err := json.MarshalIndent(pack, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}
