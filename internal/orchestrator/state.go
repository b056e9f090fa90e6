// Package orchestrator drives the agent DAG described in spec §4.2: a
// single shared State flows through a fixed sequence of nodes, each
// writing its own AgentResult slot and degrading gracefully on failure.
package orchestrator

import (
	"github.com/jmgress/smartrecover/internal/agents"
	"github.com/jmgress/smartrecover/internal/incident"
)

// AgentData is the combined set of all five AgentResults for one incident
// (the glossary's "AgentData"), the unit cached by internal/cache and
// returned by /retrieve-context and /incidents/{id}/details.
type AgentData struct {
	IncidentID string

	ServiceNow *agents.SimilarIncidentsResult
	Confluence *agents.KnowledgeBaseResult
	Change     *agents.ChangeCorrelationResult
	Logs       *agents.LogsResult
	Events     *agents.EventsResult
}

// Synthesis is populated only by Resolve's synthesis step, never by the
// graph's retrieval-only run.
type Synthesis struct {
	Summary          string
	ResolutionSteps  []string
	RelatedKnowledge []string
	CorrelatedChanges []string
	Confidence       float64
}

// State is the graph's single shared object, carried node to node in the
// order spec §4.2 defines.
type State struct {
	IncidentID string
	UserQuery  string
	Incident   incident.Incident

	AgentData

	Synthesis *Synthesis
}
