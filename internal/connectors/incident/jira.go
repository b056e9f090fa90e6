package incidentconn

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jmgress/smartrecover/internal/apperr"
	"github.com/jmgress/smartrecover/internal/change"
	"github.com/jmgress/smartrecover/internal/incident"
	"github.com/jmgress/smartrecover/internal/logevent"
	"github.com/jmgress/smartrecover/internal/observability"
	"github.com/jmgress/smartrecover/internal/similarity"
	"github.com/jmgress/smartrecover/internal/ticket"
)

// Jira is a REST-backed IncidentConnector against Jira's issue search API.
// Like ServiceNow, it has no native log/event feed.
type Jira struct {
	baseURL string
	email   string
	token   string
	client  *http.Client
	logger  zerolog.Logger
}

func NewJira(baseURL, email, token string, client *http.Client, logger zerolog.Logger) *Jira {
	return &Jira{baseURL: strings.TrimRight(baseURL, "/"), email: email, token: token, client: client, logger: logger}
}

type jiraIssue struct {
	Key    string `json:"key"`
	Fields struct {
		Summary     string `json:"summary"`
		Description string `json:"description"`
		Priority    struct {
			Name string `json:"name"`
		} `json:"priority"`
		Status struct {
			Name string `json:"name"`
		} `json:"status"`
		Created  string `json:"created"`
		Updated  string `json:"updated"`
		Assignee struct {
			DisplayName string `json:"displayName"`
		} `json:"assignee"`
		Components []struct {
			Name string `json:"name"`
		} `json:"components"`
	} `json:"fields"`
}

type jiraSearchResult struct {
	Issues []jiraIssue `json:"issues"`
}

func (j *Jira) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reqBody *strings.Reader
	if body != nil {
		reqBody = strings.NewReader(string(body))
	} else {
		reqBody = strings.NewReader("")
	}
	req, err := http.NewRequestWithContext(ctx, method, j.baseURL+path, reqBody)
	if err != nil {
		return apperr.Wrap(apperr.UpstreamFailure, "build jira request", err)
	}
	req.SetBasicAuth(j.email, j.token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := j.client.Do(req)
	if err != nil {
		return apperr.Wrap(apperr.UpstreamFailure, "call jira", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperr.Wrap(apperr.UpstreamFailure, "read jira response", err)
	}
	if resp.StatusCode >= 400 {
		j.logger.Warn().Int("status", resp.StatusCode).Str("path", path).
			RawJSON("body", observability.RedactJSON(raw)).Msg("jira_error_response")
		return apperr.New(apperr.UpstreamFailure, fmt.Sprintf("jira responded %d for %s", resp.StatusCode, path))
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			j.logger.Warn().Str("path", path).RawJSON("body", observability.RedactJSON(raw)).
				Err(err).Msg("jira_decode_failed")
			return apperr.Wrap(apperr.UpstreamFailure, "decode jira response", err)
		}
	}
	return nil
}

func (j *Jira) ListIncidents(ctx context.Context) ([]incident.Incident, error) {
	var res jiraSearchResult
	if err := j.do(ctx, http.MethodGet, "/rest/api/2/search?jql=project=INC", nil, &res); err != nil {
		return nil, err
	}
	out := make([]incident.Incident, 0, len(res.Issues))
	for _, iss := range res.Issues {
		out = append(out, iss.toIncident())
	}
	return out, nil
}

func (j *Jira) GetIncident(ctx context.Context, id string) (incident.Incident, error) {
	var iss jiraIssue
	if err := j.do(ctx, http.MethodGet, "/rest/api/2/issue/"+id, nil, &iss); err != nil {
		return incident.Incident{}, apperr.Wrap(apperr.NotFound, "incident "+id+" not found in jira", err)
	}
	return iss.toIncident(), nil
}

func (j *Jira) UpdateStatus(ctx context.Context, id, status string) (incident.Incident, error) {
	if !incident.ValidStatus(status) {
		return incident.Incident{}, apperr.New(apperr.InvalidInput, "invalid status "+status)
	}
	transition := map[string]any{"transition": map[string]string{"id": toJiraTransitionID(status)}}
	body, _ := json.Marshal(transition)
	if err := j.do(ctx, http.MethodPost, "/rest/api/2/issue/"+id+"/transitions", body, nil); err != nil {
		return incident.Incident{}, err
	}
	return j.GetIncident(ctx, id)
}

func (j *Jira) FindSimilar(ctx context.Context, inc incident.Incident, threshold float64, k int) ([]ticket.Ticket, error) {
	all, err := j.ListIncidents(ctx)
	if err != nil {
		return nil, err
	}
	target := similarity.IncidentFeatures{Title: inc.Title, Description: inc.Description, AffectedServices: inc.AffectedServices}

	var tickets []ticket.Ticket
	for _, cand := range all {
		if cand.ID == inc.ID || cand.Status != incident.StatusResolved {
			continue
		}
		score := similarity.Score(target, similarity.IncidentFeatures{Title: cand.Title, Description: cand.Description, AffectedServices: cand.AffectedServices})
		if score >= threshold {
			tickets = append(tickets, ticket.Ticket{IncidentID: cand.ID, Kind: ticket.KindSimilarIncident, Description: cand.Description, Source: "jira"})
		}
	}
	if len(tickets) > k {
		tickets = tickets[:k]
	}
	return tickets, nil
}

func (j *Jira) FindChanges(ctx context.Context, inc incident.Incident, window Window) ([]change.Record, error) {
	var res jiraSearchResult
	if err := j.do(ctx, http.MethodGet, "/rest/api/2/search?jql=project=CHG", nil, &res); err != nil {
		return nil, err
	}
	var out []change.Record
	for _, iss := range res.Issues {
		deployedAt, err := time.Parse("2006-01-02T15:04:05.000-0700", iss.Fields.Created)
		if err != nil {
			continue
		}
		var service string
		if len(iss.Fields.Components) > 0 {
			service = iss.Fields.Components[0].Name
		}
		rec := change.Record{ChangeID: iss.Key, Description: iss.Fields.Summary, DeployedAt: deployedAt, Service: service}
		if change.InWindow(rec, inc.CreatedAt, window.Before, window.After) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (j *Jira) FindLogs(ctx context.Context, inc incident.Incident) ([]logevent.Item, error) {
	return nil, ErrNotSupported
}

func (j *Jira) FindEvents(ctx context.Context, inc incident.Incident) ([]logevent.Item, error) {
	return nil, ErrNotSupported
}

func (iss jiraIssue) toIncident() incident.Incident {
	createdAt, _ := time.Parse("2006-01-02T15:04:05.000-0700", iss.Fields.Created)
	var updatedAt *time.Time
	if iss.Fields.Updated != "" {
		if t, err := time.Parse("2006-01-02T15:04:05.000-0700", iss.Fields.Updated); err == nil {
			updatedAt = &t
		}
	}
	var services []string
	for _, c := range iss.Fields.Components {
		services = append(services, c.Name)
	}
	return incident.Incident{
		ID:               iss.Key,
		Title:            iss.Fields.Summary,
		Description:      iss.Fields.Description,
		Severity:         fromJiraPriority(iss.Fields.Priority.Name),
		Status:           fromJiraStatus(iss.Fields.Status.Name),
		CreatedAt:        createdAt,
		UpdatedAt:        updatedAt,
		AffectedServices: services,
		Assignee:         iss.Fields.Assignee.DisplayName,
	}
}

func fromJiraPriority(p string) incident.Severity {
	switch strings.ToLower(p) {
	case "highest", "critical":
		return incident.SeverityCritical
	case "high":
		return incident.SeverityHigh
	case "medium":
		return incident.SeverityMedium
	default:
		return incident.SeverityLow
	}
}

func fromJiraStatus(s string) incident.Status {
	switch strings.ToLower(s) {
	case "done", "resolved", "closed":
		return incident.StatusResolved
	case "in progress", "investigating":
		return incident.StatusInvestigating
	default:
		return incident.StatusOpen
	}
}

func toJiraTransitionID(status string) string {
	switch incident.Status(status) {
	case incident.StatusOpen:
		return "11"
	case incident.StatusInvestigating:
		return "21"
	case incident.StatusResolved:
		return "31"
	default:
		return "11"
	}
}
