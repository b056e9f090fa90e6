package kbconn

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/jmgress/smartrecover/internal/apperr"
	"github.com/jmgress/smartrecover/internal/config"
	"github.com/jmgress/smartrecover/internal/observability"
)

// New selects a KnowledgeBaseConnector variant from cfg.Type. The
// confluence variant's calls are bounded by timeout (spec §5); a
// non-positive timeout disables the bound.
func New(cfg config.KnowledgeBaseConfig, timeout time.Duration, logger zerolog.Logger) (Connector, error) {
	switch cfg.Type {
	case "", "mock":
		return NewMock(cfg.Mock.DocsCSV, cfg.Mock.DocsDir)
	case "confluence":
		client := observability.NewHTTPClient(&http.Client{})
		return WithTimeout(NewConfluence(cfg.Confluence.BaseURL, cfg.Confluence.Email, cfg.Confluence.Token, cfg.Confluence.Space, client, logger), timeout), nil
	default:
		return nil, apperr.New(apperr.ConfigError, "unknown knowledge base connector type: "+cfg.Type)
	}
}
