package orchestrator

import (
	"fmt"

	"github.com/jmgress/smartrecover/internal/agents"
	"github.com/jmgress/smartrecover/internal/change"
	"github.com/jmgress/smartrecover/internal/exclusion"
	"github.com/jmgress/smartrecover/internal/logevent"
)

// logEventItemID synthesizes a stable item_id for a log/event Item, which
// carries no identifier of its own: the (timestamp, service, message)
// triple is the only thing that identifies it across repeated retrievals of
// the same fixture/connector data.
func logEventItemID(it logevent.Item) string {
	return fmt.Sprintf("%d|%s|%s", it.Timestamp.Unix(), it.Service, it.Message)
}

// applyExclusions records each category's returned count and rewrites
// data's result slots with copies holding only the non-excluded items
// (spec §4.2, §4.10). data is replaced with freshly allocated structs and
// slices throughout: data may be the AgentData stored in the shared TTL
// cache, and mutating it (or a slice sharing its backing array) in place
// would corrupt what concurrent readers and future cache hits observe.
func applyExclusions(data *AgentData, store *exclusion.Store, source string) {
	if data.ServiceNow != nil {
		store.RecordReturned(exclusion.CategorySimilarIncidents, len(data.ServiceNow.Similar))
		var kept []agents.SimilarIncident
		for _, sim := range data.ServiceNow.Similar {
			if !store.IsExcluded(data.IncidentID, sim.Incident.ID, exclusion.CategorySimilarIncidents, source) {
				kept = append(kept, sim)
			}
		}
		clone := *data.ServiceNow
		clone.Similar = kept
		data.ServiceNow = &clone
	}

	if data.Confluence != nil {
		store.RecordReturned(exclusion.CategoryKnowledgeDocuments, len(data.Confluence.Documents))
		var kept []agents.KnowledgeDocumentResult
		for _, doc := range data.Confluence.Documents {
			if !store.IsExcluded(data.IncidentID, doc.DocID, exclusion.CategoryKnowledgeDocuments, source) {
				kept = append(kept, doc)
			}
		}
		clone := *data.Confluence
		clone.Documents = kept
		data.Confluence = &clone
	}

	if data.Change != nil {
		total := len(data.Change.HighCorrelation) + len(data.Change.MediumCorrelation)
		if data.Change.TopSuspect != nil {
			total++
		}
		store.RecordReturned(exclusion.CategoryChanges, total)

		clone := *data.Change
		clone.HighCorrelation = filterChanges(data.Change.HighCorrelation, data.IncidentID, store, source)
		clone.MediumCorrelation = filterChanges(data.Change.MediumCorrelation, data.IncidentID, store, source)
		if clone.TopSuspect != nil && store.IsExcluded(data.IncidentID, clone.TopSuspect.Record.ChangeID, exclusion.CategoryChanges, source) {
			clone.TopSuspect = promoteNextSuspect(&clone)
		}
		data.Change = &clone
	}

	if data.Logs != nil {
		store.RecordReturned(exclusion.CategoryLogs, len(data.Logs.Items))
		clone := *data.Logs
		clone.Items = filterScoredItems(data.Logs.Items, data.IncidentID, exclusion.CategoryLogs, store, source)
		data.Logs = &clone
	}

	if data.Events != nil {
		store.RecordReturned(exclusion.CategoryEvents, len(data.Events.Items))
		clone := *data.Events
		clone.Items = filterScoredItems(data.Events.Items, data.IncidentID, exclusion.CategoryEvents, store, source)
		data.Events = &clone
	}
}

func filterChanges(scored []change.Scored, incidentID string, store *exclusion.Store, source string) []change.Scored {
	var kept []change.Scored
	for _, s := range scored {
		if !store.IsExcluded(incidentID, s.Record.ChangeID, exclusion.CategoryChanges, source) {
			kept = append(kept, s)
		}
	}
	return kept
}

func filterScoredItems(items []agents.ScoredItem, incidentID string, category exclusion.Category, store *exclusion.Store, source string) []agents.ScoredItem {
	var kept []agents.ScoredItem
	for _, it := range items {
		if !store.IsExcluded(incidentID, logEventItemID(it.Item), category, source) {
			kept = append(kept, it)
		}
	}
	return kept
}

// promoteNextSuspect re-derives the top suspect after the original one was
// excluded (boundary scenario 6): the next-highest-scoring change among
// the remaining high- then medium-correlation buckets becomes the new top
// suspect, or nil if none remain.
func promoteNextSuspect(cr *agents.ChangeCorrelationResult) *change.Scored {
	next := bestOf(cr.HighCorrelation)
	if next == nil {
		next = bestOf(cr.MediumCorrelation)
	}
	if next == nil {
		return nil
	}
	promoted := *next
	promoted.Bucket = change.BucketTopSuspect
	return &promoted
}

func bestOf(scored []change.Scored) *change.Scored {
	if len(scored) == 0 {
		return nil
	}
	best := scored[0]
	for _, s := range scored[1:] {
		if s.CorrelationScore > best.CorrelationScore {
			best = s
		}
	}
	return &best
}
