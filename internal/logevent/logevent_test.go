package logevent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScore_PrefersServiceMatchRecencyAndSeverity(t *testing.T) {
	incidentTime := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	services := map[string]bool{"db": true}

	matching := Item{Timestamp: incidentTime, Severity: SeverityCritical, Service: "db", Message: "oom"}
	other := Item{Timestamp: incidentTime.Add(-48 * time.Hour), Severity: SeverityInfo, Service: "web", Message: "info"}

	assert.Greater(t, Score(matching, services, incidentTime), Score(other, services, incidentTime))
}

func TestSummarize(t *testing.T) {
	items := []Item{
		{Severity: SeverityCritical}, {Severity: SeverityError}, {Severity: SeverityError}, {Severity: SeverityWarning}, {Severity: SeverityInfo},
	}
	c := Summarize(items)
	assert.Equal(t, 5, c.Total)
	assert.Equal(t, 2, c.Error)
	assert.Equal(t, 1, c.Warning)
	assert.Equal(t, 1, c.Critical)
}
