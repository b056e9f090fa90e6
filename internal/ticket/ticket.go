// Package ticket holds the Ticket entity and the quality-assessment
// scoring assigned to similar-incident results (spec §4.6).
package ticket

// Kind enumerates Ticket.Kind.
type Kind string

const (
	KindSimilarIncident Kind = "similar_incident"
	KindRelatedChange   Kind = "related_change"
)

// Ticket is a reference from one incident to a related item (a similar
// resolved incident, or a related change) surfaced by an incident
// connector.
type Ticket struct {
	TicketID    string
	IncidentID  string
	Kind        Kind
	Resolution  string
	Description string
	Source      string
}

// QualityLevel enumerates the coarse bucket a QualityScore falls in.
type QualityLevel string

const (
	QualityGood    QualityLevel = "good"
	QualityWarning QualityLevel = "warning"
	QualityPoor    QualityLevel = "poor"
)

// Quality is the per-ticket quality assessment spec §4.6 describes.
type Quality struct {
	Score  float64
	Level  QualityLevel
	Issues []string
}

// AssessQuality scores t per spec §4.6: description present and >= minChars
// contributes 0.5; for similar_incident tickets, resolution present and >=
// minChars contributes another 0.5 (related_change tickets are scored on
// description alone, since they have no resolution field).
func AssessQuality(t Ticket, minChars int) Quality {
	var score float64
	var issues []string

	if len(t.Description) >= minChars {
		score += 0.5
	} else {
		issues = append(issues, "missing or too-short description")
	}

	if t.Kind == KindSimilarIncident {
		if len(t.Resolution) >= minChars {
			score += 0.5
		} else {
			issues = append(issues, "missing resolution")
		}
	}
	// related_change tickets have no resolution field; per spec §4.6 the
	// resolution half of the score only applies to similar_incident tickets.

	level := QualityPoor
	switch {
	case score >= 0.8:
		level = QualityGood
	case score >= 0.5:
		level = QualityWarning
	}
	return Quality{Score: score, Level: level, Issues: issues}
}

// QualitySummary aggregates quality scores across a batch of tickets.
type QualitySummary struct {
	Average float64
	Count   int
	Good    int
	Warning int
	Poor    int
}

// Summarize computes the aggregate quality counts/average over qs.
func Summarize(qs []Quality) QualitySummary {
	var sum QualitySummary
	sum.Count = len(qs)
	var total float64
	for _, q := range qs {
		total += q.Score
		switch q.Level {
		case QualityGood:
			sum.Good++
		case QualityWarning:
			sum.Warning++
		default:
			sum.Poor++
		}
	}
	if sum.Count > 0 {
		sum.Average = total / float64(sum.Count)
	}
	return sum
}
