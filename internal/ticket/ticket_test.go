package ticket

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAssessQuality(t *testing.T) {
	good := Ticket{Kind: KindSimilarIncident, Description: "a reasonably long description here", Resolution: "a reasonably long resolution steps list"}
	q := AssessQuality(good, 20)
	assert.Equal(t, 1.0, q.Score)
	assert.Equal(t, QualityGood, q.Level)
	assert.Empty(t, q.Issues)

	noResolution := Ticket{Kind: KindSimilarIncident, Description: "a reasonably long description here"}
	q2 := AssessQuality(noResolution, 20)
	assert.Equal(t, 0.5, q2.Score)
	assert.Equal(t, QualityWarning, q2.Level)
	assert.Contains(t, q2.Issues, "missing resolution")

	empty := Ticket{Kind: KindSimilarIncident}
	q3 := AssessQuality(empty, 20)
	assert.Equal(t, 0.0, q3.Score)
	assert.Equal(t, QualityPoor, q3.Level)
}

func TestSummarize(t *testing.T) {
	qs := []Quality{{Score: 1, Level: QualityGood}, {Score: 0.5, Level: QualityWarning}, {Score: 0, Level: QualityPoor}}
	sum := Summarize(qs)
	assert.Equal(t, 3, sum.Count)
	assert.Equal(t, 1, sum.Good)
	assert.Equal(t, 1, sum.Warning)
	assert.Equal(t, 1, sum.Poor)
	assert.InDelta(t, 0.5, sum.Average, 0.001)
}
