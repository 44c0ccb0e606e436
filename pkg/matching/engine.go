package matching

import (
	"context"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/orderflow/core/pkg/catalog"
)

// Engine resolves customer names and line items against a catalog
// snapshot fetched through Cache, applying the exact → barcode → fuzzy
// resolution order.
type Engine struct {
	cache *Cache
	cfg   Config
}

func New(cache *Cache, cfg Config) *Engine {
	return &Engine{cache: cache, cfg: cfg}
}

// ResolveCustomer applies the customer matching order: exact
// case-insensitive name match, then fuzzy, then ambiguity-gap
// classification.
func (e *Engine) ResolveCustomer(ctx context.Context, tenant, name string) (Result, error) {
	snapshot, stale, err := e.cache.CustomerCandidates(ctx, tenant, name)
	if err != nil {
		return Result{}, err
	}

	if exact := findExactName(snapshot, name); exact != nil {
		r := *exact
		r.Score = 1.0
		return Result{Classification: ClassificationResolved, Resolved: &r, StaleCache: stale}, nil
	}

	scored := scoreByName(snapshot, name)
	return classify(scored, e.cfg, stale), nil
}

// ResolveItem applies the item matching order: SKU exact, then GTIN
// exact, then (if enabled) fuzzy name search. The resolved
// candidate always carries the catalog's own price — the crucial
// semantic rule that the spreadsheet price is never submitted to the
// external system.
func (e *Engine) ResolveItem(ctx context.Context, tenant, sku, gtin, description string) (Result, error) {
	snapshot, stale, err := e.cache.ItemCandidates(ctx, tenant, sku, gtin, description)
	if err != nil {
		return Result{}, err
	}

	if sku != "" {
		matches := filterExact(snapshot, func(c catalog.Candidate) bool {
			return strings.EqualFold(strings.TrimSpace(c.SKU), strings.TrimSpace(sku))
		})
		if len(matches) == 1 {
			r := matches[0]
			r.Score = 1.0
			return Result{Classification: ClassificationResolved, Resolved: &r, StaleCache: stale}, nil
		}
	}

	if gtin != "" {
		matches := filterExact(snapshot, func(c catalog.Candidate) bool {
			return strings.EqualFold(strings.TrimSpace(c.GTIN), strings.TrimSpace(gtin))
		})
		if len(matches) == 1 {
			r := matches[0]
			r.Score = 1.0
			return Result{Classification: ClassificationResolved, Resolved: &r, StaleCache: stale}, nil
		}
	}

	if !e.cfg.FuzzyItemNames || description == "" {
		return Result{Classification: ClassificationNotFound, StaleCache: stale}, nil
	}

	scored := scoreByName(snapshot, description)
	return classify(scored, e.cfg, stale), nil
}

func findExactName(candidates []catalog.Candidate, name string) *catalog.Candidate {
	target := strings.ToLower(strings.TrimSpace(name))
	var matches []catalog.Candidate
	for _, c := range candidates {
		if strings.ToLower(strings.TrimSpace(c.Name)) == target {
			matches = append(matches, c)
		}
	}
	if len(matches) == 1 {
		return &matches[0]
	}
	return nil
}

func filterExact(candidates []catalog.Candidate, match func(catalog.Candidate) bool) []catalog.Candidate {
	var out []catalog.Candidate
	for _, c := range candidates {
		if match(c) {
			out = append(out, c)
		}
	}
	return out
}

// scoreByName scores every candidate by normalized edit-distance
// similarity to target and sorts descending.
func scoreByName(candidates []catalog.Candidate, target string) []catalog.Candidate {
	out := make([]catalog.Candidate, len(candidates))
	copy(out, candidates)
	for i := range out {
		out[i].Score = similarity(target, out[i].Name)
	}
	sortByScoreDesc(out)
	return out
}

// similarity returns 1 - (edit distance / max length), a value in [0,1].
func similarity(a, b string) float64 {
	a, b = strings.ToLower(strings.TrimSpace(a)), strings.ToLower(strings.TrimSpace(b))
	if a == "" && b == "" {
		return 1.0
	}
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 1.0
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1.0 - float64(dist)/float64(maxLen)
}

func sortByScoreDesc(candidates []catalog.Candidate) {
	for i := 1; i < len(candidates); i++ {
		for j := i; j > 0 && candidates[j].Score > candidates[j-1].Score; j-- {
			candidates[j], candidates[j-1] = candidates[j-1], candidates[j]
		}
	}
}

// classify applies the fuzzy threshold and ambiguity gap to a
// score-sorted candidate list ( steps 2-4).
func classify(scored []catalog.Candidate, cfg Config, stale bool) Result {
	var above []catalog.Candidate
	for _, c := range scored {
		if c.Score >= cfg.FuzzyThreshold {
			above = append(above, c)
		}
	}
	if len(above) == 0 {
		return Result{Classification: ClassificationNotFound, Candidates: scored, StaleCache: stale}
	}
	if len(above) == 1 {
		r := above[0]
		return Result{Classification: ClassificationResolved, Resolved: &r, StaleCache: stale}
	}
	if above[0].Score-above[1].Score <= cfg.AmbiguityGap {
		return Result{Classification: ClassificationAmbiguous, Candidates: above, StaleCache: stale}
	}
	r := above[0]
	return Result{Classification: ClassificationResolved, Resolved: &r, StaleCache: stale}
}
