package incidentconn

import (
	"context"
	"time"

	"github.com/jmgress/smartrecover/internal/change"
	"github.com/jmgress/smartrecover/internal/incident"
	"github.com/jmgress/smartrecover/internal/logevent"
	"github.com/jmgress/smartrecover/internal/ticket"
)

// timeoutConnector wraps a Connector and bounds every call's context to
// timeout, so a slow or hung upstream soft-fails the owning graph node
// instead of hanging the retrieval run indefinitely (spec §5).
type timeoutConnector struct {
	Connector
	timeout time.Duration
}

// WithTimeout wraps conn so every method call's context is bounded by
// timeout. A non-positive timeout returns conn unchanged.
func WithTimeout(conn Connector, timeout time.Duration) Connector {
	if timeout <= 0 {
		return conn
	}
	return &timeoutConnector{Connector: conn, timeout: timeout}
}

func (c *timeoutConnector) ListIncidents(ctx context.Context) ([]incident.Incident, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.Connector.ListIncidents(ctx)
}

func (c *timeoutConnector) GetIncident(ctx context.Context, id string) (incident.Incident, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.Connector.GetIncident(ctx, id)
}

func (c *timeoutConnector) UpdateStatus(ctx context.Context, id, status string) (incident.Incident, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.Connector.UpdateStatus(ctx, id, status)
}

func (c *timeoutConnector) FindSimilar(ctx context.Context, inc incident.Incident, threshold float64, k int) ([]ticket.Ticket, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.Connector.FindSimilar(ctx, inc, threshold, k)
}

func (c *timeoutConnector) FindChanges(ctx context.Context, inc incident.Incident, window Window) ([]change.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.Connector.FindChanges(ctx, inc, window)
}

func (c *timeoutConnector) FindLogs(ctx context.Context, inc incident.Incident) ([]logevent.Item, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.Connector.FindLogs(ctx, inc)
}

func (c *timeoutConnector) FindEvents(ctx context.Context, inc incident.Incident) ([]logevent.Item, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.Connector.FindEvents(ctx, inc)
}
