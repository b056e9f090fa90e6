package incidentconn

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
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

// ServiceNow is a REST-backed IncidentConnector against a ServiceNow table
// API. It does not expose a native log/event feed, so FindLogs/FindEvents
// return ErrNotSupported per spec §4.4.
type ServiceNow struct {
	baseURL  string
	user     string
	password string
	client   *http.Client
	logger   zerolog.Logger
}

func NewServiceNow(baseURL, user, password string, client *http.Client, logger zerolog.Logger) *ServiceNow {
	return &ServiceNow{baseURL: strings.TrimRight(baseURL, "/"), user: user, password: password, client: client, logger: logger}
}

type snIncidentRecord struct {
	SysID            string `json:"sys_id"`
	Number           string `json:"number"`
	ShortDescription string `json:"short_description"`
	Description      string `json:"description"`
	Severity         string `json:"severity"`
	State            string `json:"state"`
	OpenedAt         string `json:"opened_at"`
	UpdatedOn        string `json:"sys_updated_on"`
	AssignedTo       string `json:"assigned_to"`
	CmdbCI           string `json:"cmdb_ci"`
}

type snResult[T any] struct {
	Result []T `json:"result"`
}

func (s *ServiceNow) do(ctx context.Context, method, path string, query url.Values, out any) error {
	u := s.baseURL + path
	if query != nil {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return apperr.Wrap(apperr.UpstreamFailure, "build servicenow request", err)
	}
	req.SetBasicAuth(s.user, s.password)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return apperr.Wrap(apperr.UpstreamFailure, "call servicenow", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperr.Wrap(apperr.UpstreamFailure, "read servicenow response", err)
	}

	if resp.StatusCode >= 400 {
		s.logger.Warn().Int("status", resp.StatusCode).Str("path", path).
			RawJSON("body", observability.RedactJSON(raw)).Msg("servicenow_error_response")
		return apperr.New(apperr.UpstreamFailure, fmt.Sprintf("servicenow responded %d for %s", resp.StatusCode, path))
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			s.logger.Warn().Str("path", path).RawJSON("body", observability.RedactJSON(raw)).
				Err(err).Msg("servicenow_decode_failed")
			return apperr.Wrap(apperr.UpstreamFailure, "decode servicenow response", err)
		}
	}
	return nil
}

func (s *ServiceNow) ListIncidents(ctx context.Context) ([]incident.Incident, error) {
	var res snResult[snIncidentRecord]
	if err := s.do(ctx, http.MethodGet, "/api/now/table/incident", nil, &res); err != nil {
		return nil, err
	}
	out := make([]incident.Incident, 0, len(res.Result))
	for _, r := range res.Result {
		out = append(out, r.toIncident())
	}
	return out, nil
}

func (s *ServiceNow) GetIncident(ctx context.Context, id string) (incident.Incident, error) {
	var res snResult[snIncidentRecord]
	q := url.Values{"sysparm_query": {"number=" + id}}
	if err := s.do(ctx, http.MethodGet, "/api/now/table/incident", q, &res); err != nil {
		return incident.Incident{}, err
	}
	if len(res.Result) == 0 {
		return incident.Incident{}, apperr.New(apperr.NotFound, "incident "+id+" not found in servicenow")
	}
	return res.Result[0].toIncident(), nil
}

func (s *ServiceNow) UpdateStatus(ctx context.Context, id, status string) (incident.Incident, error) {
	if !incident.ValidStatus(status) {
		return incident.Incident{}, apperr.New(apperr.InvalidInput, "invalid status "+status)
	}
	body, _ := json.Marshal(map[string]string{"state": toSNState(status)})
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, s.baseURL+"/api/now/table/incident/"+id, strings.NewReader(string(body)))
	if err != nil {
		return incident.Incident{}, apperr.Wrap(apperr.UpstreamFailure, "build servicenow patch", err)
	}
	req.SetBasicAuth(s.user, s.password)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return incident.Incident{}, apperr.Wrap(apperr.UpstreamFailure, "patch servicenow incident", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return incident.Incident{}, apperr.Wrap(apperr.UpstreamFailure, "read servicenow patch response", err)
	}
	if resp.StatusCode >= 400 {
		s.logger.Warn().Int("status", resp.StatusCode).RawJSON("body", observability.RedactJSON(raw)).
			Msg("servicenow_error_response")
		return incident.Incident{}, apperr.New(apperr.UpstreamFailure, fmt.Sprintf("servicenow patch responded %d", resp.StatusCode))
	}
	var wrapped struct {
		Result snIncidentRecord `json:"result"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		s.logger.Warn().RawJSON("body", observability.RedactJSON(raw)).Err(err).Msg("servicenow_decode_failed")
		return incident.Incident{}, apperr.Wrap(apperr.UpstreamFailure, "decode servicenow patch response", err)
	}
	return wrapped.Result.toIncident(), nil
}

func (s *ServiceNow) FindSimilar(ctx context.Context, inc incident.Incident, threshold float64, k int) ([]ticket.Ticket, error) {
	all, err := s.ListIncidents(ctx)
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
			tickets = append(tickets, ticket.Ticket{IncidentID: cand.ID, Kind: ticket.KindSimilarIncident, Description: cand.Description, Source: "servicenow"})
		}
	}
	if len(tickets) > k {
		tickets = tickets[:k]
	}
	return tickets, nil
}

func (s *ServiceNow) FindChanges(ctx context.Context, inc incident.Incident, window Window) ([]change.Record, error) {
	type snChangeRecord struct {
		Number       string `json:"number"`
		ShortDesc    string `json:"short_description"`
		StartDate    string `json:"start_date"`
		CmdbCI       string `json:"cmdb_ci"`
	}
	var res snResult[snChangeRecord]
	if err := s.do(ctx, http.MethodGet, "/api/now/table/change_request", nil, &res); err != nil {
		return nil, err
	}
	var out []change.Record
	for _, r := range res.Result {
		deployedAt, err := time.Parse("2006-01-02 15:04:05", r.StartDate)
		if err != nil {
			continue
		}
		rec := change.Record{ChangeID: r.Number, Description: r.ShortDesc, DeployedAt: deployedAt, Service: r.CmdbCI}
		if change.InWindow(rec, inc.CreatedAt, window.Before, window.After) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *ServiceNow) FindLogs(ctx context.Context, inc incident.Incident) ([]logevent.Item, error) {
	return nil, ErrNotSupported
}

func (s *ServiceNow) FindEvents(ctx context.Context, inc incident.Incident) ([]logevent.Item, error) {
	return nil, ErrNotSupported
}

func (r snIncidentRecord) toIncident() incident.Incident {
	createdAt, _ := time.Parse("2006-01-02 15:04:05", r.OpenedAt)
	var updatedAt *time.Time
	if r.UpdatedOn != "" {
		if t, err := time.Parse("2006-01-02 15:04:05", r.UpdatedOn); err == nil {
			updatedAt = &t
		}
	}
	var services []string
	if r.CmdbCI != "" {
		services = []string{r.CmdbCI}
	}
	return incident.Incident{
		ID:               r.Number,
		Title:            r.ShortDescription,
		Description:      r.Description,
		Severity:         fromSNSeverity(r.Severity),
		Status:           fromSNState(r.State),
		CreatedAt:        createdAt,
		UpdatedAt:        updatedAt,
		AffectedServices: services,
		Assignee:         r.AssignedTo,
	}
}

func fromSNSeverity(s string) incident.Severity {
	switch s {
	case "1", "1 - Critical":
		return incident.SeverityCritical
	case "2", "2 - High":
		return incident.SeverityHigh
	case "3", "3 - Moderate":
		return incident.SeverityMedium
	default:
		return incident.SeverityLow
	}
}

func fromSNState(s string) incident.Status {
	switch s {
	case "1", "New":
		return incident.StatusOpen
	case "2", "In Progress":
		return incident.StatusInvestigating
	case "6", "7", "Resolved", "Closed":
		return incident.StatusResolved
	default:
		return incident.StatusOpen
	}
}

func toSNState(status string) string {
	switch incident.Status(status) {
	case incident.StatusOpen:
		return "1"
	case incident.StatusInvestigating:
		return "2"
	case incident.StatusResolved:
		return "6"
	default:
		return "1"
	}
}
