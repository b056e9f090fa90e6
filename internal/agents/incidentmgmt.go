package agents

import (
	"context"

	"github.com/jmgress/smartrecover/internal/apperr"
	incidentconn "github.com/jmgress/smartrecover/internal/connectors/incident"
	"github.com/jmgress/smartrecover/internal/incident"
	"github.com/jmgress/smartrecover/internal/similarity"
	"github.com/jmgress/smartrecover/internal/ticket"
)

const defaultIncidentManagementPrompt = `You are an incident-management assistant. Given a target incident and a ` +
	`list of similar historical incidents with their resolutions, identify which past resolution is most likely to ` +
	`apply and explain why.`

// SimilarIncident pairs a ranked historical incident with its similarity
// score, its ticket record (resolution, if any), and a quality assessment.
type SimilarIncident struct {
	Incident incident.Incident
	Score    float64
	Ticket   ticket.Ticket
	Quality  ticket.Quality
}

// SimilarIncidentsResult is the Incident-management agent's output.
type SimilarIncidentsResult struct {
	Similar []SimilarIncident
	Quality ticket.QualitySummary
}

func (SimilarIncidentsResult) isAgentResult() {}

// IncidentManagement is the Incident-management agent (spec §4.3).
type IncidentManagement struct {
	Connector       incidentconn.Connector
	K               int
	Threshold       float64
	QualityMinChars int
	Prompts         PromptProvider
}

func (a *IncidentManagement) Name() string          { return NameIncidentManagement }
func (a *IncidentManagement) DefaultPrompt() string { return defaultIncidentManagementPrompt }

func (a *IncidentManagement) EffectivePrompt() string {
	return effectivePrompt(a.Prompts, a.Name(), a.DefaultPrompt())
}

func (a *IncidentManagement) Query(ctx context.Context, inc incident.Incident) (Result, error) {
	tickets, err := a.Connector.FindSimilar(ctx, inc, a.Threshold, a.K)
	if err != nil {
		return nil, apperr.Wrap(apperr.UpstreamFailure, "find similar incidents", err)
	}

	target := similarity.IncidentFeatures{Title: inc.Title, Description: inc.Description, AffectedServices: inc.AffectedServices}

	result := SimilarIncidentsResult{}
	qualities := make([]ticket.Quality, 0, len(tickets))
	for _, t := range tickets {
		cand, err := a.Connector.GetIncident(ctx, t.IncidentID)
		if err != nil {
			continue
		}
		score := similarity.Score(target, similarity.IncidentFeatures{Title: cand.Title, Description: cand.Description, AffectedServices: cand.AffectedServices})
		q := ticket.AssessQuality(t, a.QualityMinChars)
		qualities = append(qualities, q)
		result.Similar = append(result.Similar, SimilarIncident{
			Incident: cand,
			Score:    score,
			Ticket:   t,
			Quality:  q,
		})
	}
	result.Quality = ticket.Summarize(qualities)
	return result, nil
}
