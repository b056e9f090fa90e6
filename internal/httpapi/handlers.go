package httpapi

import (
	"context"
	"net/http"

	"github.com/jmgress/smartrecover/internal/apperr"
	"github.com/jmgress/smartrecover/internal/exclusion"
	"github.com/jmgress/smartrecover/internal/llm"
	"github.com/jmgress/smartrecover/internal/orchestrator"
	"github.com/jmgress/smartrecover/internal/version"
)

func (s *Server) handleListIncidents(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"incidents": s.Incidents.List()})
}

func (s *Server) handleGetIncident(w http.ResponseWriter, r *http.Request) {
	inc, err := s.Incidents.Get(r.PathValue("id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, inc)
}

func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := decodeValidated(r, &req); err != nil {
		respondError(w, err)
		return
	}
	inc, err := s.Incidents.UpdateStatus(r.PathValue("id"), req.Status)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, inc)
}

func (s *Server) handleDetails(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	inc, err := s.Incidents.Get(id)
	if err != nil {
		respondError(w, err)
		return
	}
	data, ok := s.Orch.Details(id)
	resp := map[string]any{"incident": inc}
	if ok {
		resp["agent_results"] = data
	} else {
		resp["agent_results"] = nil
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRetrieveContext(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	data, err := s.Orch.RetrieveContext(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, data)
}

func (s *Server) handleExcludeItem(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req excludeItemRequest
	if err := decodeValidated(r, &req); err != nil {
		respondError(w, err)
		return
	}
	category := exclusion.Category(req.Category)
	s.Exclusions.Exclude(id, req.ItemID, category, s.Orch.SourceFor(category))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListExcludedItems(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	respondJSON(w, http.StatusOK, map[string]any{"excluded_items": s.Exclusions.ExcludedItems(id)})
}

func (s *Server) handleDeleteExcludedItem(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	itemID := r.PathValue("item_id")
	category := r.URL.Query().Get("category")
	if category == "" {
		respondError(w, apperr.New(apperr.InvalidInput, "category query parameter is required"))
		return
	}
	s.Exclusions.Include(id, itemID, exclusion.Category(category))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := decodeValidated(r, &req); err != nil {
		respondError(w, err)
		return
	}
	syn, err := s.Orch.Resolve(r.Context(), req.IncidentID, req.UserQuery)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, resolveResponse{
		IncidentID:        req.IncidentID,
		Summary:           syn.Summary,
		ResolutionSteps:   syn.ResolutionSteps,
		RelatedKnowledge:  syn.RelatedKnowledge,
		CorrelatedChanges: syn.CorrelatedChanges,
		Confidence:        syn.Confidence,
	})
}

type resolveResponse struct {
	IncidentID        string   `json:"incident_id"`
	Summary           string   `json:"summary"`
	ResolutionSteps   []string `json:"resolution_steps"`
	RelatedKnowledge  []string `json:"related_knowledge"`
	CorrelatedChanges []string `json:"correlated_changes"`
	Confidence        float64  `json:"confidence"`
}

// handleChatStream implements POST /chat/stream (spec §4.1): an SSE stream
// that is cancellable by client disconnect and never buffers beyond the
// transport. A mid-stream LLM error is surfaced as one final chunk, not an
// HTTP status change, since headers are already committed.
func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	var req chatStreamRequest
	if err := decodeValidated(r, &req); err != nil {
		respondError(w, err)
		return
	}

	sse, ok := newSSEWriter(w)
	if !ok {
		respondError(w, apperr.New(apperr.ConfigError, "streaming unsupported by this response writer"))
		return
	}

	excluded := make([]orchestrator.ExcludedItem, 0, len(req.ExcludedItems))
	for _, it := range req.ExcludedItems {
		excluded = append(excluded, orchestrator.ExcludedItem{ItemID: it.ItemID, Category: exclusion.Category(it.Category)})
	}

	ctx := r.Context()
	for chunk, err := range s.Orch.ChatStream(ctx, req.IncidentID, req.Message, req.ConversationHistory, excluded) {
		if ctx.Err() != nil {
			break
		}
		if err != nil {
			sse.writeChunk(err.Error())
			break
		}
		sse.writeChunk(chunk)
	}

	if ctx.Err() == context.Canceled {
		s.loggerMu.RLock()
		s.Logger.Info().Err(apperr.New(apperr.Cancelled, "client disconnected during chat stream")).
			Str("incident_id", req.IncidentID).Msg("chat_stream_cancelled")
		s.loggerMu.RUnlock()
		return
	}
	sse.writeDone()
}

func (s *Server) handleGetLLMConfig(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"provider": s.LLMConfig.Provider})
}

func (s *Server) handlePutLLMConfig(w http.ResponseWriter, r *http.Request) {
	var req putLLMConfigRequest
	if err := decodeValidated(r, &req); err != nil {
		respondError(w, err)
		return
	}
	s.loggerMu.Lock()
	s.LLMConfig.Provider = req.Provider
	cfg := s.LLMConfig
	logger := s.Logger
	s.loggerMu.Unlock()

	provider, err := llm.New(cfg, logger)
	if err != nil {
		respondError(w, err)
		return
	}
	s.LLM.Swap(provider)
	respondJSON(w, http.StatusOK, map[string]string{"provider": req.Provider})
}

func (s *Server) handleGetLoggingConfig(w http.ResponseWriter, r *http.Request) {
	s.loggerMu.RLock()
	defer s.loggerMu.RUnlock()
	respondJSON(w, http.StatusOK, map[string]string{"level": s.Logger.GetLevel().String()})
}

func (s *Server) handlePutLoggingConfig(w http.ResponseWriter, r *http.Request) {
	var req putLoggingConfigRequest
	if err := decodeValidated(r, &req); err != nil {
		respondError(w, err)
		return
	}
	level, ok := parseLoggingLevel(req.Level)
	if !ok {
		respondError(w, apperr.New(apperr.InvalidInput, "unrecognized level "+req.Level))
		return
	}
	s.loggerMu.Lock()
	s.Logger = s.Logger.Level(level)
	s.loggerMu.Unlock()
	respondJSON(w, http.StatusOK, map[string]string{"level": req.Level})
}

func (s *Server) handleListAgentPrompts(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.Prompts.List())
}

func (s *Server) handleGetAgentPrompt(w http.ResponseWriter, r *http.Request) {
	agent := r.PathValue("agent")
	records := s.Prompts.List()
	rec, ok := records[agent]
	if !ok {
		respondError(w, apperr.New(apperr.NotFound, "unknown agent "+agent))
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

func (s *Server) handlePutAgentPrompt(w http.ResponseWriter, r *http.Request) {
	agent := r.PathValue("agent")
	var req putPromptRequest
	if err := decodeValidated(r, &req); err != nil {
		respondError(w, err)
		return
	}
	if err := s.Prompts.Put(agent, req.Prompt); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"agent": agent})
}

func (s *Server) handleResetAgentPrompts(w http.ResponseWriter, r *http.Request) {
	agent := r.URL.Query().Get("agent_name")
	if err := s.Prompts.Reset(agent); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTestLLM(w http.ResponseWriter, r *http.Request) {
	reply, err := s.LLM.Current().Complete(r.Context(), "You are a health check.", []llm.Message{{Role: "user", Content: "reply with OK"}})
	if err != nil {
		respondError(w, apperr.Wrap(apperr.UpstreamFailure, "test LLM call", err))
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"reply": reply})
}

func (s *Server) handleAccuracyMetrics(w http.ResponseWriter, r *http.Request) {
	categories, overall := s.Exclusions.Accuracy()
	respondJSON(w, http.StatusOK, map[string]any{"categories": categories, "overall_accuracy": overall})
}

func (s *Server) handleListPromptLogs(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"records": s.PromptLog.List()})
}

func (s *Server) handleDeletePromptLogs(w http.ResponseWriter, r *http.Request) {
	s.PromptLog.Clear()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": version.Version})
}
