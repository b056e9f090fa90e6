package orchestrator

import (
	"context"
	"errors"
	"iter"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmgress/smartrecover/internal/agents"
	"github.com/jmgress/smartrecover/internal/cache"
	"github.com/jmgress/smartrecover/internal/change"
	incidentconn "github.com/jmgress/smartrecover/internal/connectors/incident"
	kbconn "github.com/jmgress/smartrecover/internal/connectors/kb"
	"github.com/jmgress/smartrecover/internal/exclusion"
	"github.com/jmgress/smartrecover/internal/incident"
	"github.com/jmgress/smartrecover/internal/kbdoc"
	"github.com/jmgress/smartrecover/internal/llm"
	"github.com/jmgress/smartrecover/internal/logevent"
	"github.com/jmgress/smartrecover/internal/ticket"
)

type fakeIncidentConn struct {
	byID        map[string]incident.Incident
	similar     []ticket.Ticket
	changes     []change.Record
	getErr      error
	getCalls    int
	updateCalls int
}

func (f *fakeIncidentConn) ListIncidents(ctx context.Context) ([]incident.Incident, error) { return nil, nil }
func (f *fakeIncidentConn) GetIncident(ctx context.Context, id string) (incident.Incident, error) {
	f.getCalls++
	if f.getErr != nil {
		return incident.Incident{}, f.getErr
	}
	inc, ok := f.byID[id]
	if !ok {
		return incident.Incident{}, errors.New("not found")
	}
	return inc, nil
}
func (f *fakeIncidentConn) UpdateStatus(ctx context.Context, id, status string) (incident.Incident, error) {
	f.updateCalls++
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

type fakeKBConn struct {
	docs []kbdoc.Document
}

func (f *fakeKBConn) Search(ctx context.Context, terms []string, k int) ([]kbdoc.Document, error) {
	return f.docs, nil
}
func (f *fakeKBConn) Get(ctx context.Context, docID string) (kbdoc.Document, error) {
	return kbdoc.Document{}, errors.New("not found")
}

var _ kbconn.Connector = (*fakeKBConn)(nil)

type fakeLLM struct {
	reply      string
	completeErr error
	chunks     []string
	streamErr  error
	calls      int
}

func (f *fakeLLM) Complete(ctx context.Context, system string, messages []llm.Message) (string, error) {
	f.calls++
	if f.completeErr != nil {
		return "", f.completeErr
	}
	return f.reply, nil
}

func (f *fakeLLM) Stream(ctx context.Context, system string, messages []llm.Message) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for _, c := range f.chunks {
			if !yield(c, nil) {
				return
			}
		}
		if f.streamErr != nil {
			yield("", f.streamErr)
		}
	}
}

var _ llm.Provider = (*fakeLLM)(nil)

func newTestOrchestrator(t *testing.T, conn *fakeIncidentConn, kb *fakeKBConn, lm llm.Provider) *Orchestrator {
	t.Helper()
	agentSet := &agents.Set{
		IncidentManagement: &agents.IncidentManagement{Connector: conn, K: 5, Threshold: 0.1, QualityMinChars: 10},
		KnowledgeBase:       &agents.KnowledgeBase{Connector: kb, K: 5},
		ChangeCorrelation:   &agents.ChangeCorrelation{Connector: conn, WindowBefore: 7 * 24 * time.Hour, WindowAfter: time.Hour, TopMin: 0.7, HighMin: 0.5, MediumMin: 0.3},
		Logs:                &agents.Logs{Connector: conn},
		Events:              &agents.Events{Connector: conn},
	}
	return &Orchestrator{
		IncidentConn:         conn,
		KBConn:               kb,
		Agents:               agentSet,
		Cache:                cache.New[AgentData](),
		CacheTTL:             time.Minute,
		Exclusions:           exclusion.New(),
		LLM:                  llm.NewSwitcher(lm),
		ContextMaxPerSection: 5,
		IncidentSource:       "mock",
		KBSource:             "mock",
	}
}

func TestRetrieve_ColdRun_PopulatesAllNodes(t *testing.T) {
	inc := incident.Incident{ID: "INC001", Title: "db timeout", Description: "db cluster timeout", AffectedServices: []string{"db"}}
	resolved := incident.Incident{ID: "INC002", Title: "db timeout", Description: "db cluster timeout", Status: incident.StatusResolved}
	conn := &fakeIncidentConn{
		byID:    map[string]incident.Incident{"INC001": inc, "INC002": resolved},
		similar: []ticket.Ticket{{IncidentID: "INC002", Kind: ticket.KindSimilarIncident, Resolution: "restarted pool", Description: "db cluster timeout issue, long enough"}},
	}
	kb := &fakeKBConn{docs: []kbdoc.Document{{DocID: "KB1", Title: "db pool", Content: "db connection pool tuning"}}}
	o := newTestOrchestrator(t, conn, kb, &fakeLLM{})

	st, err := o.Retrieve(context.Background(), "INC001")
	require.NoError(t, err)
	require.NotNil(t, st.ServiceNow)
	require.NotNil(t, st.Confluence)
	require.NotNil(t, st.Change)
	require.NotNil(t, st.Logs)
	require.NotNil(t, st.Events)
	assert.Len(t, st.ServiceNow.Similar, 1)
}

func TestRetrieve_LoaderFailure_IsHardFailure(t *testing.T) {
	conn := &fakeIncidentConn{getErr: errors.New("boom")}
	kb := &fakeKBConn{}
	o := newTestOrchestrator(t, conn, kb, &fakeLLM{})

	_, err := o.Retrieve(context.Background(), "INC404")
	require.Error(t, err)
}

func TestRetrieve_CachedHit_DoesNotRerunGraph(t *testing.T) {
	inc := incident.Incident{ID: "INC001", Title: "x", Description: "y"}
	conn := &fakeIncidentConn{byID: map[string]incident.Incident{"INC001": inc}}
	kb := &fakeKBConn{}
	o := newTestOrchestrator(t, conn, kb, &fakeLLM{})

	_, err := o.Retrieve(context.Background(), "INC001")
	require.NoError(t, err)
	callsAfterFirst := conn.getCalls

	_, err = o.Retrieve(context.Background(), "INC001")
	require.NoError(t, err)
	// cache hit still re-fetches the incident itself (status may have
	// changed) but runs no other graph node, so GetIncident is called
	// exactly once more.
	assert.Equal(t, callsAfterFirst+1, conn.getCalls)
}

func TestResolve_ComputesConfidenceAndSynthesis(t *testing.T) {
	created := time.Now()
	inc := incident.Incident{ID: "INC001", Title: "db timeout", Description: "db cluster timeout", CreatedAt: created, AffectedServices: []string{"db"}}
	conn := &fakeIncidentConn{byID: map[string]incident.Incident{"INC001": inc}}
	kb := &fakeKBConn{}
	o := newTestOrchestrator(t, conn, kb, &fakeLLM{reply: "Restart the pool.\nRaise the connection limit."})

	syn, err := o.Resolve(context.Background(), "INC001", "how do I fix this?")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, syn.Confidence, 0.0)
	assert.LessOrEqual(t, syn.Confidence, 1.0)
	assert.Contains(t, syn.ResolutionSteps, "Restart the pool.")
}

func TestResolve_LLMFailure_PropagatesUpstreamError(t *testing.T) {
	inc := incident.Incident{ID: "INC001", Title: "x", Description: "y"}
	conn := &fakeIncidentConn{byID: map[string]incident.Incident{"INC001": inc}}
	kb := &fakeKBConn{}
	o := newTestOrchestrator(t, conn, kb, &fakeLLM{completeErr: errors.New("upstream down")})

	_, err := o.Resolve(context.Background(), "INC001", "help")
	require.Error(t, err)
}

func TestChatStream_CacheHit_DoesNotRerunGraph(t *testing.T) {
	inc := incident.Incident{ID: "INC001", Title: "x", Description: "y"}
	conn := &fakeIncidentConn{byID: map[string]incident.Incident{"INC001": inc}}
	kb := &fakeKBConn{}
	o := newTestOrchestrator(t, conn, kb, &fakeLLM{chunks: []string{"hel", "lo"}})

	_, err := o.Retrieve(context.Background(), "INC001")
	require.NoError(t, err)
	callsAfterRetrieve := conn.getCalls

	var got []string
	for chunk, err := range o.ChatStream(context.Background(), "INC001", "hi", nil, nil) {
		require.NoError(t, err)
		got = append(got, chunk)
	}
	assert.Equal(t, []string{"hel", "lo"}, got)
	assert.Equal(t, callsAfterRetrieve+1, conn.getCalls)
}

// blockingLLM never returns on its own; Complete and Stream both hang until
// the caller's context is done, so tests can assert that CompleteTimeout and
// StreamIdleTimeout actually bound a hung upstream call rather than letting
// it hang forever.
type blockingLLM struct{}

func (blockingLLM) Complete(ctx context.Context, system string, messages []llm.Message) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func (blockingLLM) Stream(ctx context.Context, system string, messages []llm.Message) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		<-ctx.Done()
		yield("", ctx.Err())
	}
}

var _ llm.Provider = blockingLLM{}

func TestResolve_CompleteTimeout_AbortsHangingLLMCall(t *testing.T) {
	inc := incident.Incident{ID: "INC001", Title: "x", Description: "y"}
	conn := &fakeIncidentConn{byID: map[string]incident.Incident{"INC001": inc}}
	kb := &fakeKBConn{}
	o := newTestOrchestrator(t, conn, kb, blockingLLM{})
	o.CompleteTimeout = 20 * time.Millisecond

	start := time.Now()
	_, err := o.Resolve(context.Background(), "INC001", "help")
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.Less(t, elapsed, time.Second)
}

func TestChatStream_IdleTimeout_AbortsHangingChunk(t *testing.T) {
	inc := incident.Incident{ID: "INC001", Title: "x", Description: "y"}
	conn := &fakeIncidentConn{byID: map[string]incident.Incident{"INC001": inc}}
	kb := &fakeKBConn{}
	o := newTestOrchestrator(t, conn, kb, blockingLLM{})
	o.StreamIdleTimeout = 20 * time.Millisecond

	start := time.Now()
	var gotErr error
	for _, err := range o.ChatStream(context.Background(), "INC001", "hi", nil, nil) {
		if err != nil {
			gotErr = err
			break
		}
	}
	elapsed := time.Since(start)

	require.Error(t, gotErr)
	assert.Less(t, elapsed, time.Second)
}

func TestChatStream_BreakEarly_StopsConsumingChunks(t *testing.T) {
	inc := incident.Incident{ID: "INC001", Title: "x", Description: "y"}
	conn := &fakeIncidentConn{byID: map[string]incident.Incident{"INC001": inc}}
	kb := &fakeKBConn{}
	o := newTestOrchestrator(t, conn, kb, &fakeLLM{chunks: []string{"a", "b", "c"}})

	var got []string
	for chunk, err := range o.ChatStream(context.Background(), "INC001", "hi", nil, nil) {
		require.NoError(t, err)
		got = append(got, chunk)
		if len(got) == 1 {
			break
		}
	}
	assert.Equal(t, []string{"a"}, got)
}

func TestApplyExclusions_DoesNotCorruptSharedCacheEntry(t *testing.T) {
	inc := incident.Incident{ID: "INC001", Title: "db timeout", Description: "db cluster timeout"}
	conn := &fakeIncidentConn{
		byID:    map[string]incident.Incident{"INC001": inc, "INC002": inc},
		similar: []ticket.Ticket{{IncidentID: "INC002", Kind: ticket.KindSimilarIncident, Resolution: "fixed it", Description: "similar db issue, long enough text"}},
	}
	kb := &fakeKBConn{}
	o := newTestOrchestrator(t, conn, kb, &fakeLLM{})

	st, err := o.Retrieve(context.Background(), "INC001")
	require.NoError(t, err)
	require.Len(t, st.ServiceNow.Similar, 1)

	o.Exclusions.Exclude("INC001", "INC002", exclusion.CategorySimilarIncidents, "mock")

	data, err := o.RetrieveContext(context.Background(), "INC001")
	require.NoError(t, err)
	assert.Empty(t, data.ServiceNow.Similar)

	// a second, independent read of the cached entry must still see the
	// original unfiltered data: applyExclusions must not have mutated the
	// cache's stored AgentData or a slice sharing its backing array.
	cached, ok := o.Cache.Get("INC001")
	require.True(t, ok)
	require.Len(t, cached.ServiceNow.Similar, 1)
	assert.Equal(t, "INC002", cached.ServiceNow.Similar[0].Incident.ID)
}

func TestConfidence_ClampedToUnitInterval(t *testing.T) {
	st := &State{
		Change: &agents.ChangeCorrelationResult{TopSuspect: &change.Scored{CorrelationScore: 0.9}},
		ServiceNow: &agents.SimilarIncidentsResult{Similar: []agents.SimilarIncident{{}}},
		Confluence: &agents.KnowledgeBaseResult{Documents: []agents.KnowledgeDocumentResult{{}}},
	}
	c := confidence(st)
	assert.GreaterOrEqual(t, c, 0.0)
	assert.LessOrEqual(t, c, 1.0)
}
