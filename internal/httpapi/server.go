// Package httpapi exposes SmartRecover's HTTP surface (spec §4.1): incident
// CRUD, the orchestrator/resolve/chat operations, exclusion management, and
// admin endpoints.
package httpapi

import (
	"net/http"
	"sync"

	"github.com/rs/zerolog"

	"github.com/jmgress/smartrecover/internal/config"
	"github.com/jmgress/smartrecover/internal/exclusion"
	"github.com/jmgress/smartrecover/internal/incident"
	"github.com/jmgress/smartrecover/internal/llm"
	"github.com/jmgress/smartrecover/internal/orchestrator"
	"github.com/jmgress/smartrecover/internal/promptlog"
	"github.com/jmgress/smartrecover/internal/promptstore"
)

// Server wires the HTTP routes to the orchestrator and its supporting
// stores.
type Server struct {
	Incidents  *incident.Store
	Orch       *orchestrator.Orchestrator
	Prompts    *promptstore.Store
	PromptLog  *promptlog.Log
	Exclusions *exclusion.Store
	LLM        *llm.Switcher
	LLMConfig  config.LLMConfig
	Logger     zerolog.Logger

	loggerMu sync.RWMutex
	mux      *http.ServeMux
}

// NewServer builds a Server and registers its routes.
func NewServer(s *Server) *Server {
	s.mux = http.NewServeMux()
	s.registerRoutes()
	return s
}

// ServeHTTP satisfies http.Handler, attaching a request trace ID before
// dispatch.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := withTraceID(r)
	s.mux.ServeHTTP(w, r.WithContext(ctx))
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /incidents", s.handleListIncidents)
	s.mux.HandleFunc("GET /incidents/{id}", s.handleGetIncident)
	s.mux.HandleFunc("PUT /incidents/{id}/status", s.handleUpdateStatus)
	s.mux.HandleFunc("GET /incidents/{id}/details", s.handleDetails)
	s.mux.HandleFunc("POST /incidents/{id}/retrieve-context", s.handleRetrieveContext)
	s.mux.HandleFunc("POST /incidents/{id}/exclude-item", s.handleExcludeItem)
	s.mux.HandleFunc("GET /incidents/{id}/excluded-items", s.handleListExcludedItems)
	s.mux.HandleFunc("DELETE /incidents/{id}/excluded-items/{item_id}", s.handleDeleteExcludedItem)

	s.mux.HandleFunc("POST /resolve", s.handleResolve)
	s.mux.HandleFunc("POST /chat/stream", s.handleChatStream)

	s.mux.HandleFunc("GET /admin/llm-config", s.handleGetLLMConfig)
	s.mux.HandleFunc("PUT /admin/llm-config", s.handlePutLLMConfig)
	s.mux.HandleFunc("GET /admin/logging-config", s.handleGetLoggingConfig)
	s.mux.HandleFunc("PUT /admin/logging-config", s.handlePutLoggingConfig)
	s.mux.HandleFunc("GET /admin/agent-prompts", s.handleListAgentPrompts)
	s.mux.HandleFunc("GET /admin/agent-prompts/{agent}", s.handleGetAgentPrompt)
	s.mux.HandleFunc("PUT /admin/agent-prompts/{agent}", s.handlePutAgentPrompt)
	s.mux.HandleFunc("POST /admin/agent-prompts/reset", s.handleResetAgentPrompts)
	s.mux.HandleFunc("POST /admin/test-llm", s.handleTestLLM)
	s.mux.HandleFunc("GET /admin/accuracy-metrics", s.handleAccuracyMetrics)
	s.mux.HandleFunc("GET /admin/prompt-logs", s.handleListPromptLogs)
	s.mux.HandleFunc("DELETE /admin/prompt-logs", s.handleDeletePromptLogs)

	s.mux.HandleFunc("GET /health", s.handleHealth)
}
