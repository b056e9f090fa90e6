package incidentconn

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/jmgress/smartrecover/internal/apperr"
	"github.com/jmgress/smartrecover/internal/config"
	"github.com/jmgress/smartrecover/internal/observability"
)

// New selects an IncidentConnector variant from cfg.Type. It is the single
// point of construction for the closed set of variants (spec §4.4); any
// other Type is a configuration error, not a silent fallback. Every REST
// variant's calls are bounded by timeout (spec §5); a non-positive timeout
// disables the bound.
func New(cfg config.IncidentConnectorConfig, timeout time.Duration, logger zerolog.Logger) (Connector, []string, error) {
	switch cfg.Type {
	case "", "mock":
		conn, warnings, err := NewMock(MockConfig{
			IncidentsCSV: cfg.Mock.IncidentsCSV,
			TicketsCSV:   cfg.Mock.TicketsCSV,
			ChangesCSV:   cfg.Mock.ChangesCSV,
			LogsCSV:      cfg.Mock.LogsCSV,
			EventsCSV:    cfg.Mock.EventsCSV,
		})
		return conn, warnings, err
	case "servicenow":
		client := observability.NewHTTPClient(&http.Client{})
		return WithTimeout(NewServiceNow(cfg.ServiceNow.BaseURL, cfg.ServiceNow.User, cfg.ServiceNow.Password, client, logger), timeout), nil, nil
	case "jira":
		client := observability.NewHTTPClient(&http.Client{})
		return WithTimeout(NewJira(cfg.Jira.BaseURL, cfg.Jira.Email, cfg.Jira.Token, client, logger), timeout), nil, nil
	default:
		return nil, nil, apperr.New(apperr.ConfigError, "unknown incident connector type: "+cfg.Type)
	}
}
