package agents

import (
	"context"
	"sort"
	"strings"

	"github.com/jmgress/smartrecover/internal/apperr"
	incidentconn "github.com/jmgress/smartrecover/internal/connectors/incident"
	"github.com/jmgress/smartrecover/internal/incident"
	"github.com/jmgress/smartrecover/internal/logevent"
)

const defaultLogsPrompt = `You are a log-analysis assistant. Given an incident and a set of ranked log entries, ` +
	`identify the entries most likely to explain the incident.`

const defaultEventsPrompt = `You are an event-analysis assistant. Given an incident and a set of ranked ` +
	`infrastructure events, identify the events most likely related to the incident.`

// ScoredItem pairs a log/event Item with its confidence score.
type ScoredItem struct {
	Item            logevent.Item
	ConfidenceScore float64
}

// LogsResult is the Logs agent's output.
type LogsResult struct {
	Items  []ScoredItem
	Counts logevent.Counts
}

func (LogsResult) isAgentResult() {}

// EventsResult is the Events agent's output.
type EventsResult struct {
	Items  []ScoredItem
	Counts logevent.Counts
}

func (EventsResult) isAgentResult() {}

// Logs is the Logs agent (spec §4.3).
type Logs struct {
	Connector incidentconn.Connector
	Prompts   PromptProvider
}

func (a *Logs) Name() string          { return NameLogs }
func (a *Logs) DefaultPrompt() string { return defaultLogsPrompt }

func (a *Logs) EffectivePrompt() string {
	return effectivePrompt(a.Prompts, a.Name(), a.DefaultPrompt())
}

func (a *Logs) Query(ctx context.Context, inc incident.Incident) (Result, error) {
	items, err := a.Connector.FindLogs(ctx, inc)
	if err != nil {
		if err == incidentconn.ErrNotSupported {
			return LogsResult{}, nil
		}
		return nil, apperr.Wrap(apperr.UpstreamFailure, "find logs", err)
	}
	scored, counts := scoreAndRank(items, inc)
	return LogsResult{Items: scored, Counts: counts}, nil
}

// Events is the Events agent (spec §4.3).
type Events struct {
	Connector incidentconn.Connector
	Prompts   PromptProvider
}

func (a *Events) Name() string          { return NameEvents }
func (a *Events) DefaultPrompt() string { return defaultEventsPrompt }

func (a *Events) EffectivePrompt() string {
	return effectivePrompt(a.Prompts, a.Name(), a.DefaultPrompt())
}

func (a *Events) Query(ctx context.Context, inc incident.Incident) (Result, error) {
	items, err := a.Connector.FindEvents(ctx, inc)
	if err != nil {
		if err == incidentconn.ErrNotSupported {
			return EventsResult{}, nil
		}
		return nil, apperr.Wrap(apperr.UpstreamFailure, "find events", err)
	}
	scored, counts := scoreAndRank(items, inc)
	return EventsResult{Items: scored, Counts: counts}, nil
}

func scoreAndRank(items []logevent.Item, inc incident.Incident) ([]ScoredItem, logevent.Counts) {
	services := make(map[string]bool, len(inc.AffectedServices))
	for _, s := range inc.AffectedServices {
		services[strings.ToLower(s)] = true
	}

	scored := make([]ScoredItem, 0, len(items))
	for _, it := range items {
		scored = append(scored, ScoredItem{Item: it, ConfidenceScore: logevent.Score(it, services, inc.CreatedAt)})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].ConfidenceScore > scored[j].ConfidenceScore
	})
	return scored, logevent.Summarize(items)
}
