package orchestrator

import (
	"github.com/jmgress/smartrecover/internal/agents"
	"github.com/jmgress/smartrecover/internal/logevent"
)

// confidence computes the resolve-response confidence score (spec §4.2):
// a purely additive base-plus-bonuses sum, clamped to [0,1].
func confidence(st *State) float64 {
	score := 0.2

	if st.Change != nil && st.Change.TopSuspect != nil && st.Change.TopSuspect.CorrelationScore >= 0.8 {
		score += 0.3
	}
	if st.ServiceNow != nil && len(st.ServiceNow.Similar) > 0 {
		score += 0.2
	}
	if st.Confluence != nil && len(st.Confluence.Documents) > 0 {
		score += 0.15
	}
	if st.Logs != nil && hasSeverity(st.Logs.Items, logevent.SeverityError) {
		score += 0.1
	}
	if st.Events != nil && hasSeverity(st.Events.Items, logevent.SeverityCritical) {
		score += 0.05
	}

	switch {
	case score > 1:
		return 1
	case score < 0:
		return 0
	default:
		return score
	}
}

func hasSeverity(items []agents.ScoredItem, want logevent.Severity) bool {
	for _, it := range items {
		if it.Item.Severity == want {
			return true
		}
	}
	return false
}
