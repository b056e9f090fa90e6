package httpapi

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"iter"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmgress/smartrecover/internal/agents"
	"github.com/jmgress/smartrecover/internal/apperr"
	"github.com/jmgress/smartrecover/internal/cache"
	"github.com/jmgress/smartrecover/internal/change"
	incidentconn "github.com/jmgress/smartrecover/internal/connectors/incident"
	kbconn "github.com/jmgress/smartrecover/internal/connectors/kb"
	"github.com/jmgress/smartrecover/internal/exclusion"
	"github.com/jmgress/smartrecover/internal/incident"
	"github.com/jmgress/smartrecover/internal/kbdoc"
	"github.com/jmgress/smartrecover/internal/llm"
	"github.com/jmgress/smartrecover/internal/logevent"
	"github.com/jmgress/smartrecover/internal/orchestrator"
	"github.com/jmgress/smartrecover/internal/promptlog"
	"github.com/jmgress/smartrecover/internal/promptstore"
	"github.com/jmgress/smartrecover/internal/ticket"
)

type fakeIncidentConn struct {
	byID    map[string]incident.Incident
	similar []ticket.Ticket
	changes []change.Record
}

func (f *fakeIncidentConn) ListIncidents(ctx context.Context) ([]incident.Incident, error) {
	return nil, nil
}
func (f *fakeIncidentConn) GetIncident(ctx context.Context, id string) (incident.Incident, error) {
	inc, ok := f.byID[id]
	if !ok {
		return incident.Incident{}, apperr.New(apperr.NotFound, "incident not found")
	}
	return inc, nil
}
func (f *fakeIncidentConn) UpdateStatus(ctx context.Context, id, status string) (incident.Incident, error) {
	return incident.Incident{}, nil
}
func (f *fakeIncidentConn) FindSimilar(ctx context.Context, inc incident.Incident, threshold float64, k int) ([]ticket.Ticket, error) {
	return f.similar, nil
}
func (f *fakeIncidentConn) FindChanges(ctx context.Context, inc incident.Incident, w incidentconn.Window) ([]change.Record, error) {
	return f.changes, nil
}
func (f *fakeIncidentConn) FindLogs(ctx context.Context, inc incident.Incident) ([]logevent.Item, error) {
	return nil, incidentconn.ErrNotSupported
}
func (f *fakeIncidentConn) FindEvents(ctx context.Context, inc incident.Incident) ([]logevent.Item, error) {
	return nil, incidentconn.ErrNotSupported
}

var _ incidentconn.Connector = (*fakeIncidentConn)(nil)

type fakeKBConn struct{ docs []kbdoc.Document }

func (f *fakeKBConn) Search(ctx context.Context, terms []string, k int) ([]kbdoc.Document, error) {
	return f.docs, nil
}
func (f *fakeKBConn) Get(ctx context.Context, docID string) (kbdoc.Document, error) {
	return kbdoc.Document{}, errors.New("not found")
}

var _ kbconn.Connector = (*fakeKBConn)(nil)

type fakeLLM struct {
	reply       string
	completeErr error
	chunks      []string
	// beforeChunk, if set, is called with the index of the next chunk about
	// to be yielded, letting a test simulate the caller's context being
	// cancelled mid-stream (e.g. client disconnect) before that chunk is
	// ever delivered.
	beforeChunk func(i int)
}

func (f *fakeLLM) Complete(ctx context.Context, system string, messages []llm.Message) (string, error) {
	if f.completeErr != nil {
		return "", f.completeErr
	}
	return f.reply, nil
}

func (f *fakeLLM) Stream(ctx context.Context, system string, messages []llm.Message) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for i, c := range f.chunks {
			if f.beforeChunk != nil {
				f.beforeChunk(i)
			}
			if !yield(c, nil) {
				return
			}
		}
	}
}

var _ llm.Provider = (*fakeLLM)(nil)

// newTestServer wires a Server with a single seeded incident "INC001" and
// the given fakes, mirroring the orchestrator package's own test-double
// pattern (these doubles can't be shared across packages, so they're
// duplicated here in miniature).
func newTestServer(t *testing.T, conn *fakeIncidentConn, kb *fakeKBConn, lm llm.Provider) *Server {
	t.Helper()
	return newTestServerWithLogger(t, conn, kb, lm, zerolog.Nop())
}

func newTestServerWithLogger(t *testing.T, conn *fakeIncidentConn, kb *fakeKBConn, lm llm.Provider, logger zerolog.Logger) *Server {
	t.Helper()

	incidents := incident.NewStore()
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "incidents.csv")
	csvBody := "id,title,description,severity,status,created_at,affected_services,assignee\n" +
		"INC001,db timeout,db cluster timeout,high,open,2026-01-01T00:00:00Z,db,alice\n"
	require.NoError(t, os.WriteFile(csvPath, []byte(csvBody), 0o644))
	_, err := incidents.LoadCSV(csvPath)
	require.NoError(t, err)

	agentSet := &agents.Set{
		IncidentManagement: &agents.IncidentManagement{Connector: conn, K: 5, Threshold: 0.1, QualityMinChars: 10},
		KnowledgeBase:       &agents.KnowledgeBase{Connector: kb, K: 5},
		ChangeCorrelation:   &agents.ChangeCorrelation{Connector: conn, WindowBefore: 7 * 24 * time.Hour, WindowAfter: time.Hour, TopMin: 0.7, HighMin: 0.5, MediumMin: 0.3},
		Logs:                &agents.Logs{Connector: conn},
		Events:              &agents.Events{Connector: conn},
	}
	orch := &orchestrator.Orchestrator{
		IncidentConn:         conn,
		KBConn:               kb,
		Agents:               agentSet,
		Cache:                cache.New[orchestrator.AgentData](),
		CacheTTL:             time.Minute,
		Exclusions:           exclusion.New(),
		LLM:                  llm.NewSwitcher(lm),
		ContextMaxPerSection: 5,
		IncidentSource:       "mock",
		KBSource:             "mock",
	}

	prompts, err := promptstore.New("", map[string]string{"incident_management": "default prompt"})
	require.NoError(t, err)

	return NewServer(&Server{
		Incidents:  incidents,
		Orch:       orch,
		Prompts:    prompts,
		PromptLog:  promptlog.New(10),
		Exclusions: orch.Exclusions,
		LLM:        orch.LLM,
		Logger:     logger,
	})
}

func doRequest(t *testing.T, s *Server, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestHandleListIncidents(t *testing.T) {
	s := newTestServer(t, &fakeIncidentConn{byID: map[string]incident.Incident{"INC001": {ID: "INC001"}}}, &fakeKBConn{}, &fakeLLM{})
	rec := doRequest(t, s, http.MethodGet, "/incidents", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "INC001")
}

func TestHandleGetIncident_NotFound(t *testing.T) {
	s := newTestServer(t, &fakeIncidentConn{}, &fakeKBConn{}, &fakeLLM{})
	rec := doRequest(t, s, http.MethodGet, "/incidents/NOPE", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body["detail"], "not found")
}

func TestHandleUpdateStatus(t *testing.T) {
	s := newTestServer(t, &fakeIncidentConn{}, &fakeKBConn{}, &fakeLLM{})
	rec := doRequest(t, s, http.MethodPut, "/incidents/INC001/status", map[string]string{"status": "investigating"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "investigating")
}

func TestHandleUpdateStatus_InvalidStatus(t *testing.T) {
	s := newTestServer(t, &fakeIncidentConn{}, &fakeKBConn{}, &fakeLLM{})
	rec := doRequest(t, s, http.MethodPut, "/incidents/INC001/status", map[string]string{"status": "bogus"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleDetails_NoCachedResultsYet(t *testing.T) {
	s := newTestServer(t, &fakeIncidentConn{}, &fakeKBConn{}, &fakeLLM{})
	rec := doRequest(t, s, http.MethodGet, "/incidents/INC001/details", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Nil(t, body["agent_results"])
}

func TestHandleRetrieveContext_PopulatesCache(t *testing.T) {
	inc := incident.Incident{ID: "INC001", Title: "db timeout", Description: "db cluster timeout", AffectedServices: []string{"db"}}
	conn := &fakeIncidentConn{byID: map[string]incident.Incident{"INC001": inc}}
	kb := &fakeKBConn{docs: []kbdoc.Document{{DocID: "KB1", Title: "db pool", Content: "db connection pool tuning"}}}
	s := newTestServer(t, conn, kb, &fakeLLM{})

	rec := doRequest(t, s, http.MethodPost, "/incidents/INC001/retrieve-context", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	detailsRec := doRequest(t, s, http.MethodGet, "/incidents/INC001/details", nil)
	require.Equal(t, http.StatusOK, detailsRec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(detailsRec.Body.Bytes(), &body))
	assert.NotNil(t, body["agent_results"])
}

func TestHandleExcludeItem_ThenListThenDelete(t *testing.T) {
	s := newTestServer(t, &fakeIncidentConn{}, &fakeKBConn{}, &fakeLLM{})

	excludeRec := doRequest(t, s, http.MethodPost, "/incidents/INC001/exclude-item", map[string]string{
		"item_id": "KB1", "category": "knowledge_documents",
	})
	require.Equal(t, http.StatusNoContent, excludeRec.Code)

	listRec := doRequest(t, s, http.MethodGet, "/incidents/INC001/excluded-items", nil)
	require.Equal(t, http.StatusOK, listRec.Code)
	var listBody map[string]any
	require.NoError(t, json.Unmarshal(listRec.Body.Bytes(), &listBody))
	items, ok := listBody["excluded_items"].([]any)
	require.True(t, ok)
	require.Len(t, items, 1)

	deleteRec := doRequest(t, s, http.MethodDelete, "/incidents/INC001/excluded-items/KB1?category=knowledge_documents", nil)
	require.Equal(t, http.StatusNoContent, deleteRec.Code)

	listRec2 := doRequest(t, s, http.MethodGet, "/incidents/INC001/excluded-items", nil)
	var listBody2 map[string]any
	require.NoError(t, json.Unmarshal(listRec2.Body.Bytes(), &listBody2))
	assert.Empty(t, listBody2["excluded_items"])
}

func TestHandleDeleteExcludedItem_MissingCategory(t *testing.T) {
	s := newTestServer(t, &fakeIncidentConn{}, &fakeKBConn{}, &fakeLLM{})
	rec := doRequest(t, s, http.MethodDelete, "/incidents/INC001/excluded-items/KB1", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleResolve_Success(t *testing.T) {
	inc := incident.Incident{ID: "INC001", Title: "db timeout", Description: "db cluster timeout", AffectedServices: []string{"db"}}
	conn := &fakeIncidentConn{byID: map[string]incident.Incident{"INC001": inc}}
	s := newTestServer(t, conn, &fakeKBConn{}, &fakeLLM{reply: "Restart the pool.\nRaise the connection limit."})

	rec := doRequest(t, s, http.MethodPost, "/resolve", map[string]string{
		"incident_id": "INC001", "user_query": "how do I fix this?",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body["resolution_steps"], "Restart the pool.")
}

func TestHandleResolve_MissingField(t *testing.T) {
	s := newTestServer(t, &fakeIncidentConn{}, &fakeKBConn{}, &fakeLLM{})
	rec := doRequest(t, s, http.MethodPost, "/resolve", map[string]string{"incident_id": "INC001"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleResolve_LLMFailure_MapsTo502(t *testing.T) {
	inc := incident.Incident{ID: "INC001", Title: "x", Description: "y"}
	conn := &fakeIncidentConn{byID: map[string]incident.Incident{"INC001": inc}}
	s := newTestServer(t, conn, &fakeKBConn{}, &fakeLLM{completeErr: errors.New("upstream down")})

	rec := doRequest(t, s, http.MethodPost, "/resolve", map[string]string{
		"incident_id": "INC001", "user_query": "help",
	})
	require.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestHandleChatStream_FramesSSEChunksAndDone(t *testing.T) {
	inc := incident.Incident{ID: "INC001", Title: "x", Description: "y"}
	conn := &fakeIncidentConn{byID: map[string]incident.Incident{"INC001": inc}}
	s := newTestServer(t, conn, &fakeKBConn{}, &fakeLLM{chunks: []string{"hel", "lo"}})

	req := httptest.NewRequest(http.MethodPost, "/chat/stream", bytes.NewReader(mustJSON(t, map[string]any{
		"incident_id": "INC001", "message": "hi",
	})))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	var frames []string
	scanner := bufio.NewScanner(strings.NewReader(rec.Body.String()))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "data: ") {
			frames = append(frames, strings.TrimPrefix(line, "data: "))
		}
	}
	require.Len(t, frames, 3)
	assert.Equal(t, []string{"hel", "lo", "[DONE]"}, frames)
}

func TestHandleChatStream_ClientDisconnect_LogsCancelledAndSkipsDone(t *testing.T) {
	inc := incident.Incident{ID: "INC001", Title: "x", Description: "y"}
	conn := &fakeIncidentConn{byID: map[string]incident.Incident{"INC001": inc}}

	ctx, cancel := context.WithCancel(context.Background())
	fake := &fakeLLM{chunks: []string{"hel", "lo"}}
	fake.beforeChunk = func(i int) {
		if i == 1 {
			cancel() // simulate the client disconnecting after the first frame
		}
	}

	var logBuf bytes.Buffer
	s := newTestServerWithLogger(t, conn, &fakeKBConn{}, fake, zerolog.New(&logBuf))

	req := httptest.NewRequest(http.MethodPost, "/chat/stream", bytes.NewReader(mustJSON(t, map[string]any{
		"incident_id": "INC001", "message": "hi",
	}))).WithContext(ctx)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	body := rec.Body.String()
	assert.Contains(t, body, "data: hel")
	assert.NotContains(t, body, "lo")
	assert.NotContains(t, body, "[DONE]")
	assert.Contains(t, logBuf.String(), "chat_stream_cancelled")
	assert.Contains(t, logBuf.String(), string(apperr.Cancelled))
}

func TestHandleGetLLMConfig(t *testing.T) {
	s := newTestServer(t, &fakeIncidentConn{}, &fakeKBConn{}, &fakeLLM{})
	s.LLMConfig.Provider = "openai"

	getRec := doRequest(t, s, http.MethodGet, "/admin/llm-config", nil)
	require.Equal(t, http.StatusOK, getRec.Code)
	assert.Contains(t, getRec.Body.String(), "openai")
}

func TestHandleGetSetLoggingConfig(t *testing.T) {
	s := newTestServer(t, &fakeIncidentConn{}, &fakeKBConn{}, &fakeLLM{})

	putRec := doRequest(t, s, http.MethodPut, "/admin/logging-config", map[string]string{"level": "debug"})
	require.Equal(t, http.StatusOK, putRec.Code)

	getRec := doRequest(t, s, http.MethodGet, "/admin/logging-config", nil)
	require.Equal(t, http.StatusOK, getRec.Code)
	assert.Contains(t, getRec.Body.String(), "debug")
}

func TestHandleLoggingConfig_UnknownLevel(t *testing.T) {
	s := newTestServer(t, &fakeIncidentConn{}, &fakeKBConn{}, &fakeLLM{})
	rec := doRequest(t, s, http.MethodPut, "/admin/logging-config", map[string]string{"level": "verbose"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleAgentPrompts_GetPutReset(t *testing.T) {
	s := newTestServer(t, &fakeIncidentConn{}, &fakeKBConn{}, &fakeLLM{})

	getRec := doRequest(t, s, http.MethodGet, "/admin/agent-prompts/incident_management", nil)
	require.Equal(t, http.StatusOK, getRec.Code)

	putRec := doRequest(t, s, http.MethodPut, "/admin/agent-prompts/incident_management", map[string]string{"prompt": "custom prompt"})
	require.Equal(t, http.StatusOK, putRec.Code)

	getRec2 := doRequest(t, s, http.MethodGet, "/admin/agent-prompts/incident_management", nil)
	var rec2Body promptstore.Record
	require.NoError(t, json.Unmarshal(getRec2.Body.Bytes(), &rec2Body))
	assert.True(t, rec2Body.IsCustom)

	resetRec := doRequest(t, s, http.MethodPost, "/admin/agent-prompts/reset?agent_name=incident_management", nil)
	require.Equal(t, http.StatusNoContent, resetRec.Code)
}

func TestHandleAgentPrompts_UnknownAgent(t *testing.T) {
	s := newTestServer(t, &fakeIncidentConn{}, &fakeKBConn{}, &fakeLLM{})
	rec := doRequest(t, s, http.MethodGet, "/admin/agent-prompts/nonexistent", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleTestLLM(t *testing.T) {
	s := newTestServer(t, &fakeIncidentConn{}, &fakeKBConn{}, &fakeLLM{reply: "OK"})
	rec := doRequest(t, s, http.MethodPost, "/admin/test-llm", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "OK")
}

func TestHandleTestLLM_Failure(t *testing.T) {
	s := newTestServer(t, &fakeIncidentConn{}, &fakeKBConn{}, &fakeLLM{completeErr: errors.New("down")})
	rec := doRequest(t, s, http.MethodPost, "/admin/test-llm", nil)
	require.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestHandleAccuracyMetrics(t *testing.T) {
	s := newTestServer(t, &fakeIncidentConn{}, &fakeKBConn{}, &fakeLLM{})
	s.Exclusions.RecordReturned(exclusion.CategoryLogs, 10)
	s.Exclusions.Exclude("INC001", "item1", exclusion.CategoryLogs, "mock")

	rec := doRequest(t, s, http.MethodGet, "/admin/accuracy-metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "overall_accuracy")
}

func TestHandlePromptLogs_ListAndDelete(t *testing.T) {
	s := newTestServer(t, &fakeIncidentConn{}, &fakeKBConn{}, &fakeLLM{})
	s.PromptLog.Append(time.Now(), "INC001", promptlog.PromptTypeChat, "sys", "hi", "ctx", nil)

	listRec := doRequest(t, s, http.MethodGet, "/admin/prompt-logs", nil)
	require.Equal(t, http.StatusOK, listRec.Code)
	assert.Contains(t, listRec.Body.String(), "INC001")

	deleteRec := doRequest(t, s, http.MethodDelete, "/admin/prompt-logs", nil)
	require.Equal(t, http.StatusNoContent, deleteRec.Code)

	listRec2 := doRequest(t, s, http.MethodGet, "/admin/prompt-logs", nil)
	var body map[string]any
	require.NoError(t, json.Unmarshal(listRec2.Body.Bytes(), &body))
	assert.Empty(t, body["records"])
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t, &fakeIncidentConn{}, &fakeKBConn{}, &fakeLLM{})
	rec := doRequest(t, s, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}
