// Package promptlog is the bounded, in-memory, append-only ring buffer of
// LLM invocation records (spec §4.8, §9 explicitly rules out a durable
// queue: the ring buffer alone is required).
package promptlog

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// PromptType enumerates Record.PromptType.
type PromptType string

const (
	PromptTypeSynthesis PromptType = "synthesis"
	PromptTypeChat      PromptType = "chat"
)

const contextSummaryMaxChars = 200

// Record is one LLM invocation's logged prompt.
type Record struct {
	ID                  string
	Timestamp           time.Time
	IncidentID          string
	PromptType          PromptType
	SystemPrompt        string
	UserMessage         string
	ContextSummary      string
	ConversationHistory []string // populated for chat only
}

// Log is a fixed-capacity ring buffer; once full, appending drops the
// oldest record.
type Log struct {
	mu      sync.Mutex
	max     int
	records []Record
}

// New builds an empty Log bounded at max records.
func New(max int) *Log {
	if max <= 0 {
		max = 1
	}
	return &Log{max: max}
}

// Append adds a record, synthesizing its ID/timestamp and truncating
// contextSummary to contextSummaryMaxChars. now is passed in rather than
// computed here so callers can stamp deterministic times in tests.
func (l *Log) Append(now time.Time, incidentID string, promptType PromptType, systemPrompt, userMessage, contextSummary string, conversationHistory []string) Record {
	if len(contextSummary) > contextSummaryMaxChars {
		contextSummary = contextSummary[:contextSummaryMaxChars]
	}
	rec := Record{
		ID:                  uuid.NewString(),
		Timestamp:           now,
		IncidentID:          incidentID,
		PromptType:          promptType,
		SystemPrompt:        systemPrompt,
		UserMessage:         userMessage,
		ContextSummary:      contextSummary,
		ConversationHistory: conversationHistory,
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, rec)
	if len(l.records) > l.max {
		l.records = l.records[len(l.records)-l.max:]
	}
	return rec
}

// List returns a copy of every retained record, oldest first.
func (l *Log) List() []Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Record, len(l.records))
	copy(out, l.records)
	return out
}

// Clear discards every retained record (DELETE /admin/prompt-logs).
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = nil
}
