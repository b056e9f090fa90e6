// Package agents implements the five agent kinds of spec §4.3: each
// satisfies the capability set {query(incident, context) -> Result, name,
// default_prompt}, constructed from configuration via a factory, holding a
// connector reference and the agent's effective system prompt.
package agents

import (
	"context"

	"github.com/jmgress/smartrecover/internal/incident"
)

// PromptProvider resolves the effective system prompt for an agent by name
// (spec §4.9's Prompt store, referenced here only by interface to avoid an
// import cycle between internal/agents and internal/promptstore).
type PromptProvider interface {
	Get(agentName string) string
}

// Result is the marker interface satisfied by each agent's concrete output
// type (SimilarIncidentsResult, KnowledgeBaseResult, ChangeCorrelationResult,
// LogsResult, EventsResult). The orchestrator type-switches on the concrete
// type returned by each node; this mirrors the capability set's uniform
// `query -> AgentResult` signature without flattening five distinct shapes
// into one generic struct.
type Result interface {
	isAgentResult()
}

// Agent is the common capability set every agent kind satisfies.
type Agent interface {
	Name() string
	DefaultPrompt() string
	EffectivePrompt() string
	Query(ctx context.Context, inc incident.Incident) (Result, error)
}

// effectivePrompt resolves an agent's system prompt: the prompt store's
// current value if set, else the agent's own default.
func effectivePrompt(prompts PromptProvider, name, fallback string) string {
	if prompts == nil {
		return fallback
	}
	if p := prompts.Get(name); p != "" {
		return p
	}
	return fallback
}

const (
	NameIncidentManagement = "incident-management"
	NameKnowledgeBase      = "knowledge-base"
	NameChangeCorrelation  = "change-correlation"
	NameLogs               = "logs"
	NameEvents             = "events"
)
