// Package matching implements the customer/item resolution engine:
// exact → barcode/GTIN → fuzzy strategies against the external
// catalog, with a two-tier cache in front of it.
package matching

import "github.com/orderflow/core/pkg/catalog"

// Classification is the matching engine's outcome for one target.
type Classification string

const (
	ClassificationResolved        Classification = "resolved"
	ClassificationAmbiguous       Classification = "ambiguous"
	ClassificationNotFound        Classification = "not_found"
	ClassificationNeedsUserInput  Classification = "needs_user_input"
)

// Result is what the engine returns for one customer or line-item match.
type Result struct {
	Classification Classification
	Resolved       *catalog.Candidate
	Candidates     []catalog.Candidate
	StaleCache     bool
}

// Config holds the thresholds  exposes as MATCH_FUZZY_THRESHOLD,
// MATCH_AMBIGUITY_GAP, and MATCH_CACHE_TTL.
type Config struct {
	FuzzyThreshold float64
	AmbiguityGap   float64
	FuzzyItemNames bool
}

// DefaultConfig mirrors the stated defaults.
func DefaultConfig() Config {
	return Config{
		FuzzyThreshold: 0.75,
		AmbiguityGap:   0.1,
		FuzzyItemNames: true,
	}
}
