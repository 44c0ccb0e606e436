package committee

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/orderflow/core/pkg/evidence"
	"github.com/orderflow/core/pkg/orders"
)

type fakeProvider struct {
	id, family string
	weight     float64
	response   string
	err        error
}

func (f *fakeProvider) ID() string      { return f.id }
func (f *fakeProvider) Family() string  { return f.family }
func (f *fakeProvider) Weight() float64 { return f.weight }
func (f *fakeProvider) Invoke(ctx context.Context, prompt string, budget time.Duration) (string, error) {
	return f.response, f.err
}

type fakeEventStore struct {
	events []orders.AuditEvent
}

func (s *fakeEventStore) Append(ctx context.Context, e orders.AuditEvent) (orders.AuditEvent, error) {
	e.Sequence = int64(len(s.events)) + 1
	s.events = append(s.events, e)
	return e, nil
}

func (s *fakeEventStore) ReadByCase(ctx context.Context, caseID string, from int64) ([]orders.AuditEvent, error) {
	return s.events, nil
}

func mappingResponse(column string, confidence float64) string {
	b, _ := json.Marshal(responseSchema{
		FieldMappings: []orders.FieldMapping{{Field: "customer", SelectedColumnID: column, Confidence: confidence}},
		Confidence:    confidence,
	})
	return string(b)
}

func testPack() EvidencePack {
	return EvidencePack{
		CaseID:     "C1",
		Candidates: []ColumnCandidate{{ID: "col_a", Header: "Customer"}, {ID: "col_b", Header: "Buyer"}},
		Fields:     []string{"customer"},
	}
}

func testConfig() Config {
	return Config{
		N:               3,
		ProviderTimeout: time.Second,
		Aggregation: AggregationConfig{
			MinUsable:           2,
			ConsensusThreshold:  0.66,
			ConfidenceThreshold: 0.75,
		},
	}
}

func TestRun_UnanimousConsensus(t *testing.T) {
	dir := t.TempDir()
	store, err := evidence.NewFilesystemStore(dir)
	if err != nil {
		t.Fatalf("NewFilesystemStore: %v", err)
	}
	events := &fakeEventStore{}

	registry := NewRegistry()
	registry.Register(&fakeProvider{id: "p1", family: "anthropic", weight: 1.0, response: mappingResponse("col_a", 0.95)})
	registry.Register(&fakeProvider{id: "p2", family: "bedrock", weight: 1.0, response: mappingResponse("col_a", 0.9)})
	registry.Register(&fakeProvider{id: "p3", family: "openai", weight: 1.0, response: mappingResponse("col_a", 0.92)})

	c := New(registry, testConfig(), store, events)
	verdict, err := c.Run(context.Background(), "C1", 1, testPack())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if verdict.Consensus != orders.ConsensusUnanimous {
		t.Errorf("Consensus = %s, want unanimous", verdict.Consensus)
	}
	if verdict.NeedsHuman {
		t.Error("expected needs_human=false for unanimous high-confidence verdict")
	}
}

func TestRun_SplitOnCriticalFieldForcesNeedsHuman(t *testing.T) {
	dir := t.TempDir()
	store, err := evidence.NewFilesystemStore(dir)
	if err != nil {
		t.Fatalf("NewFilesystemStore: %v", err)
	}
	events := &fakeEventStore{}

	registry := NewRegistry()
	registry.Register(&fakeProvider{id: "p1", family: "anthropic", weight: 1.0, response: mappingResponse("col_a", 0.9)})
	registry.Register(&fakeProvider{id: "p2", family: "bedrock", weight: 1.0, response: mappingResponse("col_b", 0.9)})
	registry.Register(&fakeProvider{id: "p3", family: "openai", weight: 1.0, response: mappingResponse("col_a", 0.4)})

	c := New(registry, testConfig(), store, events)
	verdict, err := c.Run(context.Background(), "C1", 1, EvidencePack{
		CaseID:     "C1",
		Candidates: []ColumnCandidate{{ID: "col_a"}, {ID: "col_b"}},
		Fields:     []string{"customer"},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !verdict.NeedsHuman {
		t.Error("expected needs_human=true on critical field split")
	}
	if len(verdict.Disagreements) != 1 {
		t.Errorf("expected one disagreement, got %d", len(verdict.Disagreements))
	}
}

func TestRun_NonCriticalThreeWaySplit(t *testing.T) {
	dir := t.TempDir()
	store, err := evidence.NewFilesystemStore(dir)
	if err != nil {
		t.Fatalf("NewFilesystemStore: %v", err)
	}
	events := &fakeEventStore{}

	mapping := func(column string, confidence float64) string {
		b, _ := json.Marshal(responseSchema{
			FieldMappings: []orders.FieldMapping{{Field: "unit_price", SelectedColumnID: column, Confidence: confidence}},
			Confidence:    confidence,
		})
		return string(b)
	}

	registry := NewRegistry()
	registry.Register(&fakeProvider{id: "p1", family: "anthropic", weight: 1.0, response: mapping("col_a", 0.9)})
	registry.Register(&fakeProvider{id: "p2", family: "bedrock", weight: 1.0, response: mapping("col_b", 0.9)})
	registry.Register(&fakeProvider{id: "p3", family: "openai", weight: 1.0, response: mapping("col_c", 0.9)})

	c := New(registry, testConfig(), store, events)
	verdict, err := c.Run(context.Background(), "C1", 1, EvidencePack{
		CaseID:     "C1",
		Candidates: []ColumnCandidate{{ID: "col_a"}, {ID: "col_b"}, {ID: "col_c"}},
		Fields:     []string{"unit_price"},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if verdict.Consensus != orders.ConsensusSplit {
		t.Errorf("Consensus = %s, want split for a genuine three-way split on a non-critical field", verdict.Consensus)
	}
	if !verdict.NeedsHuman {
		t.Error("expected needs_human=true on a three-way split")
	}
}

func TestRun_BelowMinUsableYieldsNoConsensus(t *testing.T) {
	dir := t.TempDir()
	store, err := evidence.NewFilesystemStore(dir)
	if err != nil {
		t.Fatalf("NewFilesystemStore: %v", err)
	}
	events := &fakeEventStore{}

	registry := NewRegistry()
	registry.Register(&fakeProvider{id: "p1", family: "anthropic", weight: 1.0, err: context.DeadlineExceeded})
	registry.Register(&fakeProvider{id: "p2", family: "bedrock", weight: 1.0, err: context.DeadlineExceeded})
	registry.Register(&fakeProvider{id: "p3", family: "openai", weight: 1.0, response: mappingResponse("col_a", 0.9)})

	c := New(registry, testConfig(), store, events)
	verdict, err := c.Run(context.Background(), "C1", 1, testPack())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if verdict.Consensus != orders.ConsensusNoConsensus || !verdict.NeedsHuman {
		t.Errorf("expected no_consensus+needs_human, got %s / %v", verdict.Consensus, verdict.NeedsHuman)
	}
}

func TestRun_RejectsInventedColumnID(t *testing.T) {
	dir := t.TempDir()
	store, err := evidence.NewFilesystemStore(dir)
	if err != nil {
		t.Fatalf("NewFilesystemStore: %v", err)
	}
	events := &fakeEventStore{}

	registry := NewRegistry()
	registry.Register(&fakeProvider{id: "p1", family: "anthropic", weight: 1.0, response: mappingResponse("col_a", 0.9)})
	registry.Register(&fakeProvider{id: "p2", family: "bedrock", weight: 1.0, response: mappingResponse("col_nonexistent", 0.9)})
	registry.Register(&fakeProvider{id: "p3", family: "openai", weight: 1.0, response: mappingResponse("col_a", 0.9)})

	c := New(registry, testConfig(), store, events)
	verdict, err := c.Run(context.Background(), "C1", 1, testPack())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if verdict.Consensus != orders.ConsensusUnanimous {
		t.Errorf("expected the invented-column provider to be discarded and the remaining two to agree unanimously, got %s", verdict.Consensus)
	}
}
