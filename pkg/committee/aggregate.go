package committee

import (
	"sort"

	"github.com/orderflow/core/pkg/orders"
	"github.com/orderflow/core/pkg/shared/stats"
)

// AggregationConfig holds the thresholds  exposes as
// COMMITTEE_MIN_USABLE, COMMITTEE_CONSENSUS_THRESHOLD, and
// COMMITTEE_CONFIDENCE_THRESHOLD.
type AggregationConfig struct {
	MinUsable          int
	ConsensusThreshold float64
	ConfidenceThreshold float64
}

// Aggregate computes a CommitteeVerdict from the usable responses of a
// single committee invocation (the weighted voting and
// needs_human rules).
func Aggregate(caseID string, version int, selected []Provider, outputs []orders.CommitteeOutput, fields []string, cfg AggregationConfig) orders.CommitteeVerdict {
	selectedIDs := make([]string, len(selected))
	for i, p := range selected {
		selectedIDs[i] = p.ID()
	}

	usable := make([]orders.CommitteeOutput, 0, len(outputs))
	for _, o := range outputs {
		if o.Usable {
			usable = append(usable, o)
		}
	}

	verdict := orders.CommitteeVerdict{
		CaseID:            caseID,
		Version:           version,
		SelectedProviders: selectedIDs,
	}

	if len(usable) < cfg.MinUsable {
		verdict.Consensus = orders.ConsensusNoConsensus
		verdict.NeedsHuman = true
		return verdict
	}

	var decisions []orders.FieldDecision
	var disagreements []orders.Disagreement
	var confidences []float64
	anyCriticalSplit := false
	anyNonCriticalSplit := false
	anyFieldLacksMajority := false
	allUnanimous := true

	for _, field := range fields {
		strengths := make(map[string]float64)
		votes := make(map[string]int)
		providerValue := make(map[string]string)
		distinctValues := make(map[string]bool)

		for _, o := range usable {
			for _, fm := range o.FieldMappings {
				if fm.Field != field || fm.SelectedColumnID == "" {
					continue
				}
				strengths[fm.SelectedColumnID] += o.Weight * fm.Confidence
				votes[fm.SelectedColumnID]++
				providerValue[o.ProviderID] = fm.SelectedColumnID
				distinctValues[fm.SelectedColumnID] = true
			}
		}

		if len(strengths) == 0 {
			continue
		}

		winner, winnerStrength, runnerUp := stats.TopTwo(strengths)
		margin := stats.Margin(winnerStrength, runnerUp)
		totalStrength := winnerStrength + runnerUp
		relativeMargin := margin
		if totalStrength > 0 {
			relativeMargin = margin / totalStrength
		}

		dissent := len(distinctValues) > 1
		critical := orders.CriticalFields[field]
		// majority: strictly more than half of usable responses voted
		// for the winner.
		fieldMajority := votes[winner]*2 > len(usable)
		if !fieldMajority {
			anyFieldLacksMajority = true
		}
		// unanimous requires every usable response to have voted for
		// the winner, not merely the absence of a competing value.
		if dissent || votes[winner] != len(usable) {
			allUnanimous = false
		}

		if dissent {
			disagreements = append(disagreements, orders.Disagreement{Field: field, ProviderValue: providerValue})
			switch {
			case critical:
				anyCriticalSplit = true
			case relativeMargin < cfg.ConsensusThreshold:
				anyNonCriticalSplit = true
			}
		}

		decisions = append(decisions, orders.FieldDecision{
			Field:         field,
			WinningColumn: winner,
			WinningWeight: winnerStrength,
			Margin:        margin,
			Dissent:       dissent,
		})
		confidences = append(confidences, relativeMargin)

		if relativeMargin < cfg.ConsensusThreshold {
			verdict.NeedsHuman = true
		}
	}

	sort.Slice(decisions, func(i, j int) bool { return decisions[i].Field < decisions[j].Field })
	sort.Slice(disagreements, func(i, j int) bool { return disagreements[i].Field < disagreements[j].Field })

	verdict.Decisions = decisions
	verdict.Disagreements = disagreements
	verdict.OverallConfidence = stats.Mean(confidences)

	switch {
	case anyCriticalSplit || anyNonCriticalSplit:
		verdict.Consensus = orders.ConsensusSplit
		verdict.NeedsHuman = true
	case allUnanimous:
		verdict.Consensus = orders.ConsensusUnanimous
	case anyFieldLacksMajority:
		verdict.Consensus = orders.ConsensusNoConsensus
		verdict.NeedsHuman = true
	default:
		verdict.Consensus = orders.ConsensusMajority
	}

	if verdict.OverallConfidence < cfg.ConfidenceThreshold {
		verdict.NeedsHuman = true
	}

	return verdict
}
