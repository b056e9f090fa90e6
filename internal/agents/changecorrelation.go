package agents

import (
	"context"
	"time"

	"github.com/jmgress/smartrecover/internal/apperr"
	"github.com/jmgress/smartrecover/internal/change"
	incidentconn "github.com/jmgress/smartrecover/internal/connectors/incident"
	"github.com/jmgress/smartrecover/internal/incident"
)

const defaultChangeCorrelationPrompt = `You are a change-correlation assistant. Given an incident and a set of ` +
	`recent deployments/changes, identify which change most likely caused the incident and justify your reasoning.`

// ChangeCorrelationResult is the Change-correlation agent's output: changes
// in the lookback window, bucketed per spec §4.3.
type ChangeCorrelationResult struct {
	TopSuspect       *change.Scored
	HighCorrelation  []change.Scored
	MediumCorrelation []change.Scored
}

func (ChangeCorrelationResult) isAgentResult() {}

// ChangeCorrelation is the Change-correlation agent (spec §4.3).
type ChangeCorrelation struct {
	Connector     incidentconn.Connector
	WindowBefore  time.Duration
	WindowAfter   time.Duration
	TopMin        float64
	HighMin       float64
	MediumMin     float64
	Prompts       PromptProvider
}

func (a *ChangeCorrelation) Name() string          { return NameChangeCorrelation }
func (a *ChangeCorrelation) DefaultPrompt() string { return defaultChangeCorrelationPrompt }

func (a *ChangeCorrelation) EffectivePrompt() string {
	return effectivePrompt(a.Prompts, a.Name(), a.DefaultPrompt())
}

func (a *ChangeCorrelation) Query(ctx context.Context, inc incident.Incident) (Result, error) {
	window := incidentconn.Window{Before: a.WindowBefore, After: a.WindowAfter}
	records, err := a.Connector.FindChanges(ctx, inc, window)
	if err != nil {
		return nil, apperr.Wrap(apperr.UpstreamFailure, "find changes", err)
	}

	incCtx := change.IncidentContext{
		CreatedAt:        inc.CreatedAt,
		AffectedServices: inc.AffectedServices,
		Title:            inc.Title,
		Description:      inc.Description,
	}
	scored := change.Partition(records, incCtx, a.WindowBefore, a.WindowAfter, a.TopMin, a.HighMin, a.MediumMin)

	result := ChangeCorrelationResult{}
	for i := range scored {
		s := scored[i]
		switch s.Bucket {
		case change.BucketTopSuspect:
			top := s
			result.TopSuspect = &top
		case change.BucketHigh:
			result.HighCorrelation = append(result.HighCorrelation, s)
		case change.BucketMedium:
			result.MediumCorrelation = append(result.MediumCorrelation, s)
		}
	}
	return result, nil
}
