// Package change holds the ChangeRecord entity and the per-incident
// correlation scoring spec §4.3 assigns to it.
package change

import (
	"math"
	"time"

	"github.com/jmgress/smartrecover/internal/similarity"
)

// Record is a deploy/change event. CorrelationScore is computed per
// incident at retrieval time and is not a persistent attribute.
type Record struct {
	ChangeID    string
	Description string
	DeployedAt  time.Time
	Service     string
}

// CorrelationBucket is the partition a scored change falls into.
type CorrelationBucket string

const (
	BucketTopSuspect CorrelationBucket = "top_suspect"
	BucketHigh       CorrelationBucket = "high_correlation"
	BucketMedium     CorrelationBucket = "medium_correlation"
	BucketDropped    CorrelationBucket = "dropped"
)

// Scored pairs a Record with its computed CorrelationScore and bucket.
type Scored struct {
	Record           Record
	CorrelationScore float64
	Bucket           CorrelationBucket
}

// IncidentContext is the subset of Incident fields the correlation scorer
// needs, kept separate to avoid an import cycle with internal/incident.
type IncidentContext struct {
	CreatedAt        time.Time
	AffectedServices []string
	Title            string
	Description      string
}

// InWindow reports whether r was deployed within
// [createdAt-before, createdAt+after].
func InWindow(r Record, createdAt time.Time, before, after time.Duration) bool {
	start := createdAt.Add(-before)
	end := createdAt.Add(after)
	return !r.DeployedAt.Before(start) && !r.DeployedAt.After(end)
}

// Score computes the blended correlation score spec §4.3 defines:
// service-overlap Jaccard weight 0.5, temporal proximity weight 0.3
// (1 - |created_at - deployed_at| / before, clamped to [0,1]), description
// keyword overlap weight 0.2.
func Score(r Record, incCtx IncidentContext, before time.Duration) float64 {
	svcScore := similarity.Jaccard(
		similarity.SetOf(incCtx.AffectedServices),
		similarity.SetOf([]string{r.Service}),
	)

	delta := incCtx.CreatedAt.Sub(r.DeployedAt)
	if delta < 0 {
		delta = -delta
	}
	temporal := 1 - float64(delta)/float64(before)
	temporal = math.Max(0, math.Min(1, temporal))

	descTokens := similarity.Tokenize(incCtx.Title + " " + incCtx.Description)
	changeTokens := similarity.Tokenize(r.Description)
	descScore := similarity.Jaccard(descTokens, changeTokens)

	return 0.5*svcScore + 0.3*temporal + 0.2*descScore
}

// Partition scores every record in window against incCtx and buckets each
// per spec §4.3's thresholds (configurable, defaults 0.7/0.5/0.3), dropping
// anything below mediumMin. The highest-scoring change overall becomes
// top_suspect only if its score clears topMin; otherwise it stays in
// whichever bucket its score lands in.
func Partition(records []Record, incCtx IncidentContext, before, after time.Duration, topMin, highMin, mediumMin float64) []Scored {
	var inWindow []Scored
	for _, r := range records {
		if !InWindow(r, incCtx.CreatedAt, before, after) {
			continue
		}
		score := Score(r, incCtx, before)
		if score < mediumMin {
			continue
		}
		inWindow = append(inWindow, Scored{Record: r, CorrelationScore: score})
	}

	topIdx := -1
	for i, s := range inWindow {
		if s.CorrelationScore >= topMin && (topIdx == -1 || s.CorrelationScore > inWindow[topIdx].CorrelationScore) {
			topIdx = i
		}
	}

	for i := range inWindow {
		switch {
		case i == topIdx:
			inWindow[i].Bucket = BucketTopSuspect
		case inWindow[i].CorrelationScore >= highMin:
			inWindow[i].Bucket = BucketHigh
		default:
			inWindow[i].Bucket = BucketMedium
		}
	}
	return inWindow
}

// TopSuspect returns the single top_suspect-bucketed change, if any.
func TopSuspect(scored []Scored) (Scored, bool) {
	for _, s := range scored {
		if s.Bucket == BucketTopSuspect {
			return s, true
		}
	}
	return Scored{}, false
}
