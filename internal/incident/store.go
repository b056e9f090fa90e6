package incident

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jmgress/smartrecover/internal/apperr"
)

var incidentsCSVHeader = []string{"id", "title", "description", "severity", "status", "created_at", "affected_services", "assignee"}

// Store is the in-memory, CSV-loaded Incident store. Reads take the map's
// read lock and each entry's own mutex; writes to a single incident go through that
// incident's own lock so concurrent PUT /status calls serialize and
// readers never observe a half-updated Incident.
type Store struct {
	mu        sync.RWMutex // guards the incidents map itself (inserts only; never post-load)
	incidents map[string]*entry
}

type entry struct {
	mu sync.Mutex
	i  Incident
}

// NewStore builds an empty store. Use LoadCSV to populate it at startup.
func NewStore() *Store {
	return &Store{incidents: make(map[string]*entry)}
}

// LoadCSV reads path (the incidents.csv schema from spec §6) and populates
// the store. A non-empty trailing column beyond the header does not abort
// the load (spec §9's Open Question resolution): it is recorded as a
// warning and the row is still loaded using only the first N fields. This
// func returns warnings for the caller to log, rather than logging
// directly, to avoid binding this package to the logging package.
func (s *Store) LoadCSV(path string) (warnings []string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperr.Wrap(apperr.ConfigError, "open incidents CSV", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, apperr.Wrap(apperr.ConfigError, "read incidents CSV header", err)
	}
	if len(header) < len(incidentsCSVHeader) {
		return nil, apperr.New(apperr.ConfigError, fmt.Sprintf("incidents CSV header has %d columns, want at least %d", len(header), len(incidentsCSVHeader)))
	}

	for {
		row, rerr := r.Read()
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return warnings, apperr.Wrap(apperr.ConfigError, "read incidents CSV row", rerr)
		}
		if len(row) > len(incidentsCSVHeader) {
			for _, extra := range row[len(incidentsCSVHeader):] {
				if strings.TrimSpace(extra) != "" {
					warnings = append(warnings, fmt.Sprintf("incidents CSV row %q has non-empty trailing column %q; ignoring", row[0], extra))
				}
			}
			row = row[:len(incidentsCSVHeader)]
		}
		inc, perr := parseIncidentRow(row)
		if perr != nil {
			warnings = append(warnings, perr.Error())
			continue
		}
		s.mu.Lock()
		s.incidents[inc.ID] = &entry{i: inc}
		s.mu.Unlock()
	}
	return warnings, nil
}

func parseIncidentRow(row []string) (Incident, error) {
	createdAt, err := time.Parse(time.RFC3339, strings.TrimSpace(row[5]))
	if err != nil {
		return Incident{}, fmt.Errorf("parse created_at %q: %w", row[5], err)
	}
	var services []string
	if s := strings.TrimSpace(row[6]); s != "" {
		services = strings.Split(s, "|")
	}
	return Incident{
		ID:               strings.TrimSpace(row[0]),
		Title:            row[1],
		Description:      row[2],
		Severity:         Severity(strings.TrimSpace(row[3])),
		Status:           Status(strings.TrimSpace(row[4])),
		CreatedAt:        createdAt,
		AffectedServices: services,
		Assignee:         strings.TrimSpace(row[7]),
	}, nil
}

// List returns all incidents ordered by created_at descending, ties broken
// by id ascending.
func (s *Store) List() []Incident {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Incident, 0, len(s.incidents))
	for _, e := range s.incidents {
		e.mu.Lock()
		out = append(out, e.i)
		e.mu.Unlock()
	}
	sort.Slice(out, func(a, b int) bool {
		if !out[a].CreatedAt.Equal(out[b].CreatedAt) {
			return out[a].CreatedAt.After(out[b].CreatedAt)
		}
		return out[a].ID < out[b].ID
	})
	return out
}

// Get returns one incident by id, or not-found.
func (s *Store) Get(id string) (Incident, error) {
	s.mu.RLock()
	e, ok := s.incidents[id]
	s.mu.RUnlock()
	if !ok {
		return Incident{}, apperr.New(apperr.NotFound, fmt.Sprintf("incident %q not found", id))
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.i, nil
}

// UpdateStatus atomically updates one incident's status. Concurrent calls
// for the same incident serialize on the entry's own mutex; readers always
// observe either the old or the new value, never a partial update.
func (s *Store) UpdateStatus(id string, status string) (Incident, error) {
	if !ValidStatus(status) {
		return Incident{}, apperr.New(apperr.InvalidInput, fmt.Sprintf("invalid status %q", status))
	}
	s.mu.RLock()
	e, ok := s.incidents[id]
	s.mu.RUnlock()
	if !ok {
		return Incident{}, apperr.New(apperr.NotFound, fmt.Sprintf("incident %q not found", id))
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	now := time.Now().UTC()
	e.i.Status = Status(status)
	e.i.UpdatedAt = &now
	return e.i, nil
}
