// Package promptstore holds the per-agent {default, current, is_custom}
// prompt records (spec §4.9), persisted as a single JSON document with
// atomic rename and served from an in-memory copy.
package promptstore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/jmgress/smartrecover/internal/apperr"
)

// Record is one agent's prompt state.
type Record struct {
	Default  string `json:"default"`
	Current  string `json:"current"`
	IsCustom bool   `json:"is_custom"`
}

// Store is the in-memory, JSON-file-backed prompt store.
type Store struct {
	path string

	mu      sync.RWMutex
	records map[string]Record
}

// New builds a Store backed by path, loading any existing document. agents
// is the set of {name: default_prompt} every agent registers at startup;
// an agent missing from the persisted document gets its default seeded in.
func New(path string, agents map[string]string) (*Store, error) {
	s := &Store{path: path, records: make(map[string]Record, len(agents))}

	if path != "" {
		if raw, err := os.ReadFile(path); err == nil {
			var persisted map[string]Record
			if err := json.Unmarshal(raw, &persisted); err != nil {
				return nil, apperr.Wrap(apperr.ConfigError, "parse prompt store document", err)
			}
			for name, rec := range persisted {
				s.records[name] = rec
			}
		} else if !os.IsNotExist(err) {
			return nil, apperr.Wrap(apperr.ConfigError, "read prompt store document", err)
		}
	}

	for name, def := range agents {
		rec, ok := s.records[name]
		if !ok {
			s.records[name] = Record{Default: def, Current: def}
			continue
		}
		rec.Default = def
		if !rec.IsCustom || rec.Current == "" {
			rec.Current = def
		}
		s.records[name] = rec
	}
	return s, nil
}

// Get returns agent's current effective prompt, or "" if unregistered.
func (s *Store) Get(agent string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records[agent].Current
}

// List returns every registered agent's record, keyed by name.
func (s *Store) List() map[string]Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Record, len(s.records))
	for k, v := range s.records {
		out[k] = v
	}
	return out
}

// Put sets agent's current prompt to newPrompt. Setting newPrompt equal to
// the agent's default unsets the custom flag (spec §4.9).
func (s *Store) Put(agent, newPrompt string) error {
	s.mu.Lock()
	rec, ok := s.records[agent]
	if !ok {
		s.mu.Unlock()
		return apperr.New(apperr.NotFound, "unknown agent "+agent)
	}
	rec.Current = newPrompt
	rec.IsCustom = newPrompt != rec.Default
	s.records[agent] = rec
	s.mu.Unlock()
	return s.persist()
}

// Reset restores agent's current prompt to its default, or every agent's if
// agent is "".
func (s *Store) Reset(agent string) error {
	s.mu.Lock()
	if agent == "" {
		for name, rec := range s.records {
			rec.Current = rec.Default
			rec.IsCustom = false
			s.records[name] = rec
		}
	} else {
		rec, ok := s.records[agent]
		if !ok {
			s.mu.Unlock()
			return apperr.New(apperr.NotFound, "unknown agent "+agent)
		}
		rec.Current = rec.Default
		rec.IsCustom = false
		s.records[agent] = rec
	}
	s.mu.Unlock()
	return s.persist()
}

// persist writes the full document to s.path via a temp-file-plus-rename,
// so a crash mid-write never leaves a truncated document. Caller must not
// hold s.mu.
func (s *Store) persist() error {
	if s.path == "" {
		return nil
	}
	s.mu.RLock()
	raw, err := json.MarshalIndent(s.records, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return apperr.Wrap(apperr.ConfigError, "marshal prompt store document", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".promptstore-*.tmp")
	if err != nil {
		return apperr.Wrap(apperr.ConfigError, "create prompt store temp file", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return apperr.Wrap(apperr.ConfigError, "write prompt store temp file", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return apperr.Wrap(apperr.ConfigError, "close prompt store temp file", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return apperr.Wrap(apperr.ConfigError, "rename prompt store temp file", err)
	}
	return nil
}
