// Package incidentconn defines the IncidentConnector capability set (spec
// §4.4) and its closed set of variants: Mock, ServiceNow, Jira.
package incidentconn

import (
	"context"
	"errors"
	"time"

	"github.com/jmgress/smartrecover/internal/change"
	"github.com/jmgress/smartrecover/internal/incident"
	"github.com/jmgress/smartrecover/internal/logevent"
	"github.com/jmgress/smartrecover/internal/ticket"
)

// ErrNotSupported is returned by FindLogs/FindEvents on connectors that
// cannot produce that evidence kind (spec §4.4: ServiceNow/Jira MAY return
// not-supported). Callers (the Logs/Events agents) treat it as an empty
// result, not a graph failure.
var ErrNotSupported = errors.New("operation not supported by this connector")

// Window bounds a change-correlation query.
type Window struct {
	Before time.Duration
	After  time.Duration
}

// Connector is the IncidentConnector capability set.
type Connector interface {
	ListIncidents(ctx context.Context) ([]incident.Incident, error)
	GetIncident(ctx context.Context, id string) (incident.Incident, error)
	UpdateStatus(ctx context.Context, id, status string) (incident.Incident, error)
	FindSimilar(ctx context.Context, inc incident.Incident, threshold float64, k int) ([]ticket.Ticket, error)
	FindChanges(ctx context.Context, inc incident.Incident, window Window) ([]change.Record, error)
	FindLogs(ctx context.Context, inc incident.Incident) ([]logevent.Item, error)
	FindEvents(ctx context.Context, inc incident.Incident) ([]logevent.Item, error)
}
