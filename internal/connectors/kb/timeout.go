package kbconn

import (
	"context"
	"time"

	"github.com/jmgress/smartrecover/internal/kbdoc"
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

func (c *timeoutConnector) Search(ctx context.Context, queryTerms []string, k int) ([]kbdoc.Document, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.Connector.Search(ctx, queryTerms, k)
}

func (c *timeoutConnector) Get(ctx context.Context, docID string) (kbdoc.Document, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.Connector.Get(ctx, docID)
}
