// Package logevent holds the transient LogEntry/Event entities and the
// confidence scoring spec §4.3 assigns to them.
package logevent

import (
	"math"
	"strings"
	"time"
)

// Severity is shared by LogEntry.Level and Event.Severity.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityError    Severity = "error"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
	SeverityDebug    Severity = "debug"
)

// Item is the common shape of a LogEntry or an Event: both are scored and
// ranked the same way (spec §4.3), only the field names differ at the wire
// boundary (service/application, message/message).
type Item struct {
	Timestamp time.Time
	Severity  Severity
	Service   string
	Message   string
}

// severityWeight implements spec §4.3's severity weighting: error/critical
// = 1, warn/warning = 0.6, info/debug = 0.2.
func severityWeight(s Severity) float64 {
	switch s {
	case SeverityCritical, SeverityError:
		return 1.0
	case SeverityWarning:
		return 0.6
	default:
		return 0.2
	}
}

// recencyWindow bounds how far from the incident's created_at a log/event
// timestamp can be while still contributing positive recency score; items
// outside it score 0 recency rather than going negative. Not specified
// exactly by spec; a 24h window is this module's own resolution, matching
// the order of magnitude of the change-correlation window's Δ_before.
const recencyWindow = 24 * time.Hour

// Score computes the confidence_score spec §4.3 defines: service match
// weight 0.5, recency weight 0.3, severity weighting weight 0.2.
func Score(item Item, affectedServices map[string]bool, incidentTime time.Time) float64 {
	var svcScore float64
	if affectedServices[strings.ToLower(item.Service)] {
		svcScore = 1.0
	}

	delta := incidentTime.Sub(item.Timestamp)
	if delta < 0 {
		delta = -delta
	}
	recency := 1 - float64(delta)/float64(recencyWindow)
	recency = math.Max(0, math.Min(1, recency))

	return 0.5*svcScore + 0.3*recency + 0.2*severityWeight(item.Severity)
}

// Counts are the aggregate counts both the Logs agent and the Events agent
// return alongside their ranked items.
type Counts struct {
	Total    int
	Error    int // error_count for logs, unused for events
	Warning  int
	Critical int // critical_count for events, unused for logs
}

// Summarize computes Counts over a batch of items.
func Summarize(items []Item) Counts {
	var c Counts
	c.Total = len(items)
	for _, it := range items {
		switch it.Severity {
		case SeverityCritical:
			c.Critical++
		case SeverityError:
			c.Error++
		case SeverityWarning:
			c.Warning++
		}
	}
	return c
}
