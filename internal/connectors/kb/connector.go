// Package kbconn defines the KnowledgeBaseConnector capability set (spec
// §4.4) and its closed set of variants: Mock, Confluence.
package kbconn

import (
	"context"

	"github.com/jmgress/smartrecover/internal/kbdoc"
)

// Connector is the KnowledgeBaseConnector capability set.
type Connector interface {
	Search(ctx context.Context, queryTerms []string, k int) ([]kbdoc.Document, error)
	Get(ctx context.Context, docID string) (kbdoc.Document, error)
}
