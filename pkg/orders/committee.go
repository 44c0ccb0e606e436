package orders

// Consensus is the committee's aggregation outcome classification.
type Consensus string

const (
	ConsensusUnanimous   Consensus = "unanimous"
	ConsensusMajority    Consensus = "majority"
	ConsensusSplit       Consensus = "split"
	ConsensusNoConsensus Consensus = "no_consensus"
)

// FieldMapping is one model's decision for one canonical field.
type FieldMapping struct {
	Field            string
	SelectedColumnID string
	Confidence       float64
	Reasoning        string
}

// CommitteeOutput is a single provider's response to one committee
// invocation.
type CommitteeOutput struct {
	ProviderID      string
	ProviderFamily  string
	PromptHash      string
	FieldMappings   []FieldMapping
	Issues          []Issue
	OverallConfidence float64
	Weight          float64
	LatencyMS       int64
	Usable          bool
	FailureCode     string
}

// FieldDecision is the committee's aggregated winner for one field.
type FieldDecision struct {
	Field          string
	WinningColumn  string
	WinningWeight  float64
	Margin         float64
	Dissent        bool
}

// Disagreement records competing values for one field across providers.
type Disagreement struct {
	Field         string
	ProviderValue map[string]string // provider id -> chosen column id
}

// CommitteeVerdict is the committee's aggregated outcome.
type CommitteeVerdict struct {
	CaseID           string
	Version          int
	SelectedProviders []string
	Consensus        Consensus
	Decisions        []FieldDecision
	Disagreements    []Disagreement
	NeedsHuman       bool
	OverallConfidence float64
}

// CriticalFields are the fields whose dissent always forces needs_human
// and whose dissent always classifies the verdict as split.
var CriticalFields = map[string]bool{
	"customer": true,
	"sku":      true,
	"gtin":     true,
}
