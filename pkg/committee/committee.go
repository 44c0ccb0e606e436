// Package committee implements the multi-model review committee (M1,
// ): family-diverse provider selection, parallel fan-out of an
// identical evidence pack, schema-validated responses, weighted-vote
// aggregation, and artifact persistence.
package committee

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/orderflow/core/pkg/evidence"
	"github.com/orderflow/core/pkg/eventlog"
	"github.com/orderflow/core/pkg/notifier/sanitization"
	"github.com/orderflow/core/pkg/orders"
	orderrs "github.com/orderflow/core/pkg/shared/errors"
)

// Config is the committee's runtime configuration (// COMMITTEE_N, COMMITTEE_TIMEOUT_MS, plus AggregationConfig's
// thresholds).
type Config struct {
	N                  int
	ProviderTimeout    time.Duration
	Aggregation        AggregationConfig
}

// Committee runs invocations against a registered provider pool,
// persisting every artifact to the evidence store and event log.
type Committee struct {
	registry  *Registry
	cfg       Config
	evidence  evidence.Store
	events    eventlog.Store
	sanitizer *sanitization.Sanitizer
}

func New(registry *Registry, cfg Config, ev evidence.Store, events eventlog.Store) *Committee {
	return &Committee{registry: registry, cfg: cfg, evidence: ev, events: events, sanitizer: sanitization.NewSanitizer()}
}

// Run fans out pack to the selected providers, validates and aggregates
// their responses, and returns the resulting verdict. Every
// provider call and the final verdict are persisted before Run returns.
func (c *Committee) Run(ctx context.Context, caseID string, version int, pack EvidencePack) (orders.CommitteeVerdict, error) {
	selected := Select(c.registry.Pool(), c.cfg.N)
	if err := c.recordSelection(ctx, caseID, selected); err != nil {
		return orders.CommitteeVerdict{}, err
	}

	redacted := Redact(pack, c.sanitizer)
	prompt, err := RenderPrompt(redacted)
	if err != nil {
		return orders.CommitteeVerdict{}, orderrs.WithCode(orderrs.FailedTo("render evidence pack prompt", err), orderrs.CodeInvalidRequest)
	}

	outputs := make([]orders.CommitteeOutput, len(selected))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range selected {
		i, p := i, p
		g.Go(func() error {
			outputs[i] = c.invokeOne(gctx, caseID, version, p, prompt, pack)
			return nil
		})
	}
	// errgroup.Wait only returns an error if a goroutine itself errors;
	// invokeOne never returns one, it records failures inline so one
	// provider's failure cannot cancel its siblings.
	_ = g.Wait()

	for _, o := range outputs {
		if err := c.recordProviderInvocation(ctx, caseID, o); err != nil {
			return orders.CommitteeVerdict{}, err
		}
	}

	verdict := Aggregate(caseID, version, selected, outputs, pack.Fields, c.cfg.Aggregation)

	if err := c.recordVerdict(ctx, caseID, verdict); err != nil {
		return orders.CommitteeVerdict{}, err
	}
	return verdict, nil
}

// invokeOne calls a single provider within its time budget, persists its
// prompt/response to the evidence store, and validates the response
// against the pack's candidate set. Failures are recorded as unusable
// rather than propagated, so the committee can still reach
// COMMITTEE_MIN_USABLE with the remaining providers.
func (c *Committee) invokeOne(ctx context.Context, caseID string, version int, p Provider, prompt string, pack EvidencePack) orders.CommitteeOutput {
	out := orders.CommitteeOutput{
		ProviderID:     p.ID(),
		ProviderFamily: p.Family(),
		PromptHash:     promptHash(prompt),
		Weight:         p.Weight(),
	}

	if _, err := c.evidence.Put(ctx, evidence.CommitteePromptPath(caseID, version, p.ID()), []byte(prompt)); err != nil {
		out.Usable = false
		out.FailureCode = string(orderrs.CodeStorageUnavailable)
		return out
	}

	start := time.Now()
	raw, err := p.Invoke(ctx, prompt, c.cfg.ProviderTimeout)
	out.LatencyMS = time.Since(start).Milliseconds()
	if err != nil {
		out.Usable = false
		out.FailureCode = string(orderrs.CodeProviderTimeout)
		return out
	}

	if _, err := c.evidence.Put(ctx, evidence.CommitteeResponsePath(caseID, version, p.ID()), []byte(raw)); err != nil {
		out.Usable = false
		out.FailureCode = string(orderrs.CodeStorageUnavailable)
		return out
	}

	parsed, err := validateResponse(raw, pack)
	if err != nil {
		out.Usable = false
		out.FailureCode = string(orderrs.CodeInvalidRequest)
		return out
	}

	out.Usable = true
	out.FieldMappings = parsed.FieldMappings
	out.Issues = parsed.Issues
	out.OverallConfidence = parsed.Confidence
	return out
}

func (c *Committee) recordSelection(ctx context.Context, caseID string, selected []Provider) error {
	ids := make([]string, len(selected))
	for i, p := range selected {
		ids[i] = p.ID()
	}
	_, err := c.events.Append(ctx, orders.AuditEvent{
		CaseID: caseID,
		Type:   orders.EventCommitteeInvoked,
		Actor:  orders.Actor{Kind: "system"},
		Data:   map[string]any{"selected_providers": ids},
	})
	return err
}

func (c *Committee) recordProviderInvocation(ctx context.Context, caseID string, out orders.CommitteeOutput) error {
	_, err := c.events.Append(ctx, orders.AuditEvent{
		CaseID: caseID,
		Type:   orders.EventCommitteeInvoked,
		Actor:  orders.Actor{Kind: "provider", ID: out.ProviderID},
		Data: map[string]any{
			"provider_id":     out.ProviderID,
			"provider_family": out.ProviderFamily,
			"usable":          out.Usable,
			"latency_ms":      out.LatencyMS,
			"failure_code":    out.FailureCode,
		},
	})
	return err
}

func (c *Committee) recordVerdict(ctx context.Context, caseID string, verdict orders.CommitteeVerdict) error {
	b, err := json.Marshal(verdict)
	if err != nil {
		return orderrs.WithCode(orderrs.FailedTo("marshal verdict", err), orderrs.CodeInvalidRequest)
	}
	if _, err := c.evidence.Put(ctx, evidence.VerdictPath(caseID, verdict.Version), b); err != nil {
		return err
	}
	_, err = c.events.Append(ctx, orders.AuditEvent{
		CaseID: caseID,
		Type:   orders.EventCommitteeVerdict,
		Actor:  orders.Actor{Kind: "system"},
		Data: map[string]any{
			"consensus":   verdict.Consensus,
			"needs_human": verdict.NeedsHuman,
			"confidence":  verdict.OverallConfidence,
		},
	})
	return err
}

func promptHash(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:])
}
