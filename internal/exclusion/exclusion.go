// Package exclusion is the per-incident excluded-item store and the
// per-category accuracy metrics it feeds (spec §4.10).
package exclusion

import "sync"

// Category enumerates the evidence categories accuracy is tracked for.
type Category string

const (
	CategorySimilarIncidents  Category = "similar_incidents"
	CategoryKnowledgeDocuments Category = "knowledge_documents"
	CategoryChanges            Category = "changes"
	CategoryLogs               Category = "logs"
	CategoryEvents             Category = "events"
)

type itemKey struct {
	IncidentID string
	ItemID     string
	Kind       Category
	Source     string
}

type counters struct {
	returned int
	excluded map[string]bool // distinct item keys ever excluded, within this category
}

// Store holds, per incident, the set of excluded items, plus process-wide
// per-category accuracy counters.
type Store struct {
	mu        sync.Mutex
	excluded  map[string]map[itemKey]bool // incidentID -> excluded item set
	byCategory map[Category]*counters
}

// New builds an empty Store.
func New() *Store {
	return &Store{
		excluded:   make(map[string]map[itemKey]bool),
		byCategory: make(map[Category]*counters),
	}
}

// RecordReturned increments the returned counter for category. The
// orchestrator calls this once per item surfaced to a client, before
// exclusion filtering, so `returned` is a monotonic total.
func (s *Store) RecordReturned(category Category, n int) {
	if n <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counterFor(category).returned += n
}

// Exclude marks (itemID, category, source) excluded for incidentID.
func (s *Store) Exclude(incidentID, itemID string, category Category, source string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.excluded[incidentID]
	if !ok {
		set = make(map[itemKey]bool)
		s.excluded[incidentID] = set
	}
	key := itemKey{IncidentID: incidentID, ItemID: itemID, Kind: category, Source: source}
	set[key] = true
	s.counterFor(category).excluded[key.ItemID+"|"+key.Source] = true
}

// IsExcluded reports whether itemID is excluded for incidentID under category.
func (s *Store) IsExcluded(incidentID, itemID string, category Category, source string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.excluded[incidentID]
	if !ok {
		return false
	}
	return set[itemKey{IncidentID: incidentID, ItemID: itemID, Kind: category, Source: source}]
}

// ExcludedItem is one entry of the per-incident excluded set, as surfaced
// by GET /incidents/{id}/excluded-items.
type ExcludedItem struct {
	ItemID   string
	Category Category
	Source   string
}

// ExcludedItems returns every item excluded for incidentID.
func (s *Store) ExcludedItems(incidentID string) []ExcludedItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := s.excluded[incidentID]
	out := make([]ExcludedItem, 0, len(set))
	for key := range set {
		out = append(out, ExcludedItem{ItemID: key.ItemID, Category: key.Kind, Source: key.Source})
	}
	return out
}

// Include reverses a prior Exclude for (incidentID, itemID, category),
// regardless of source (DELETE /incidents/{id}/excluded-items/{item_id}).
// The category's accuracy counters are left untouched: "excluded" tracks
// items ever excluded, not currently excluded.
func (s *Store) Include(incidentID, itemID string, category Category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.excluded[incidentID]
	if !ok {
		return
	}
	for key := range set {
		if key.ItemID == itemID && key.Kind == category {
			delete(set, key)
		}
	}
}

func (s *Store) counterFor(category Category) *counters {
	c, ok := s.byCategory[category]
	if !ok {
		c = &counters{excluded: make(map[string]bool)}
		s.byCategory[category] = c
	}
	return c
}

// CategoryAccuracy is one category's accuracy metric (spec §4.10).
type CategoryAccuracy struct {
	Category Category
	Returned int
	Excluded int
	Accuracy float64
}

// Accuracy computes per-category accuracy plus an overall figure weighted
// by each category's returned count.
func (s *Store) Accuracy() (categories []CategoryAccuracy, overall float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var weightedSum float64
	var totalReturned int
	for _, cat := range []Category{CategorySimilarIncidents, CategoryKnowledgeDocuments, CategoryChanges, CategoryLogs, CategoryEvents} {
		c, ok := s.byCategory[cat]
		if !ok {
			continue
		}
		excluded := len(c.excluded)
		denom := c.returned
		if denom == 0 {
			denom = 1
		}
		acc := 100 * float64(c.returned-excluded) / float64(denom)
		categories = append(categories, CategoryAccuracy{Category: cat, Returned: c.returned, Excluded: excluded, Accuracy: acc})
		weightedSum += acc * float64(c.returned)
		totalReturned += c.returned
	}
	if totalReturned > 0 {
		overall = weightedSum / float64(totalReturned)
	}
	return categories, overall
}
