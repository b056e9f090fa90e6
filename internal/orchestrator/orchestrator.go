package orchestrator

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/jmgress/smartrecover/internal/agents"
	"github.com/jmgress/smartrecover/internal/apperr"
	"github.com/jmgress/smartrecover/internal/cache"
	incidentconn "github.com/jmgress/smartrecover/internal/connectors/incident"
	kbconn "github.com/jmgress/smartrecover/internal/connectors/kb"
	"github.com/jmgress/smartrecover/internal/exclusion"
	"github.com/jmgress/smartrecover/internal/llm"
	"github.com/jmgress/smartrecover/internal/logging"
	"github.com/jmgress/smartrecover/internal/promptlog"
)

// Orchestrator owns every dependency the agent graph and synthesis/chat
// steps need: connectors (via the agent set), the AgentData cache, the
// exclusion store, the LLM switcher, and the prompt log.
type Orchestrator struct {
	IncidentConn incidentconn.Connector
	KBConn       kbconn.Connector
	Agents       *agents.Set

	Cache    *cache.Cache[AgentData]
	CacheTTL time.Duration

	Exclusions *exclusion.Store
	LLM        *llm.Switcher
	PromptLog  *promptlog.Log

	ContextMaxPerSection int

	// CompleteTimeout bounds a single blocking LLM Complete call (spec §5);
	// StreamIdleTimeout bounds the gap between consecutive Stream chunks,
	// since the overall stream length is open-ended. Non-positive disables
	// the respective bound.
	CompleteTimeout   time.Duration
	StreamIdleTimeout time.Duration

	// TraceEnabled gates the function-entry/exit debug trace emitted at
	// each retrieval graph node boundary.
	TraceEnabled bool

	// IncidentSource/KBSource name the configured connector variant (e.g.
	// "mock", "servicenow", "jira" / "mock", "confluence"), echoed in the
	// AgentResults wire shape's `source` field and used as the exclusion
	// store's per-item source key.
	IncidentSource string
	KBSource       string

	Logger zerolog.Logger

	sf singleflight.Group
}

// Retrieve runs the retrieval graph for incidentID (spec §4.2), or returns
// the cached AgentData if still fresh. Concurrent Retrieve calls for the
// same incident ID collapse into a single graph run via singleflight.
func (o *Orchestrator) Retrieve(ctx context.Context, incidentID string) (*State, error) {
	if data, ok := o.Cache.Get(incidentID); ok {
		inc, err := o.IncidentConn.GetIncident(ctx, incidentID)
		if err != nil {
			return nil, err
		}
		return &State{IncidentID: incidentID, Incident: inc, AgentData: data}, nil
	}

	v, err, _ := o.sf.Do(incidentID, func() (interface{}, error) {
		st := &State{IncidentID: incidentID}
		st.AgentData.IncidentID = incidentID
		log := logging.FromContext(ctx, o.Logger)
		if err := runGraph(ctx, o, st, log); err != nil {
			return nil, err
		}
		o.Cache.Put(incidentID, st.AgentData, o.CacheTTL)
		return st, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*State), nil
}

// RetrieveContext implements POST /incidents/{id}/retrieve-context: runs
// the graph (never the LLM), applies exclusions, and returns the filtered
// AgentData.
func (o *Orchestrator) RetrieveContext(ctx context.Context, incidentID string) (AgentData, error) {
	st, err := o.Retrieve(ctx, incidentID)
	if err != nil {
		return AgentData{}, err
	}
	applyExclusions(&st.AgentData, o.Exclusions, o.IncidentSource)
	return st.AgentData, nil
}

// Details implements GET /incidents/{id}/details: returns the cached
// AgentData if present, else a zero-value AgentData (the handler renders
// this as `agent_results: null`).
func (o *Orchestrator) Details(incidentID string) (AgentData, bool) {
	data, ok := o.Cache.Get(incidentID)
	if !ok {
		return AgentData{}, false
	}
	applyExclusions(&data, o.Exclusions, o.IncidentSource)
	return data, true
}

// Resolve implements POST /resolve (spec §4.1, §4.2): runs the graph,
// applies exclusions, builds context, blocks on the LLM, and computes
// confidence.
func (o *Orchestrator) Resolve(ctx context.Context, incidentID, userQuery string) (*Synthesis, error) {
	st, err := o.Retrieve(ctx, incidentID)
	if err != nil {
		return nil, err
	}
	st.UserQuery = userQuery
	applyExclusions(&st.AgentData, o.Exclusions, o.IncidentSource)

	system := o.Agents.IncidentManagement.EffectivePrompt()
	contextText := buildContext(st, o.ContextMaxPerSection)
	userMsg := "Incident: " + st.Incident.Title + "\n\n" + contextText + "\n\nQuestion: " + userQuery

	o.logPrompt(incidentID, promptlog.PromptTypeSynthesis, system, userMsg, contextText, nil)

	completeCtx := ctx
	if o.CompleteTimeout > 0 {
		var cancel context.CancelFunc
		completeCtx, cancel = context.WithTimeout(ctx, o.CompleteTimeout)
		defer cancel()
	}
	answer, err := o.LLM.Current().Complete(completeCtx, system, []llm.Message{{Role: "user", Content: userMsg}})
	if err != nil {
		return nil, apperr.Wrap(apperr.UpstreamFailure, "llm synthesis", err)
	}

	syn := &Synthesis{
		Summary:          answer,
		ResolutionSteps:  splitLines(answer),
		RelatedKnowledge: knowledgeTitles(st),
		CorrelatedChanges: changeIDs(st),
		Confidence:       confidence(st),
	}
	st.Synthesis = syn
	return syn, nil
}

// ChatStream implements POST /chat/stream (spec §4.1, §4.2): serves cached
// AgentData (on a cache hit the retrieval graph does not run again, but
// Retrieve still re-fetches the incident itself from the incident
// connector), applies exclusions, and streams the LLM's response. The returned
// sequence is cancellable by the caller breaking its range loop; breaking
// propagates to the underlying LLM stream within the bound spec §5 sets.
func (o *Orchestrator) ChatStream(ctx context.Context, incidentID, message string, history []string, excludedItems []ExcludedItem) func(func(string, error) bool) {
	return func(yield func(string, error) bool) {
		for _, item := range excludedItems {
			o.Exclusions.Exclude(incidentID, item.ItemID, item.Category, o.sourceFor(item.Category))
		}

		st, err := o.Retrieve(ctx, incidentID)
		if err != nil {
			yield("", err)
			return
		}
		applyExclusions(&st.AgentData, o.Exclusions, o.IncidentSource)

		system := o.Agents.IncidentManagement.EffectivePrompt()
		contextText := buildContext(st, o.ContextMaxPerSection)
		userMsg := "Incident: " + st.Incident.Title + "\n\n" + contextText + "\n\nUser: " + message

		messages := make([]llm.Message, 0, len(history)+1)
		for i, h := range history {
			role := "user"
			if i%2 == 1 {
				role = "assistant"
			}
			messages = append(messages, llm.Message{Role: role, Content: h})
		}
		messages = append(messages, llm.Message{Role: "user", Content: userMsg})

		o.logPrompt(incidentID, promptlog.PromptTypeChat, system, message, contextText, history)

		streamCtx := ctx
		var idle *time.Timer
		if o.StreamIdleTimeout > 0 {
			var cancel context.CancelFunc
			streamCtx, cancel = context.WithCancel(ctx)
			defer cancel()
			idle = time.AfterFunc(o.StreamIdleTimeout, cancel)
			defer idle.Stop()
		}

		for chunk, serr := range o.LLM.Current().Stream(streamCtx, system, messages) {
			if idle != nil {
				idle.Reset(o.StreamIdleTimeout)
			}
			if !yield(chunk, serr) {
				return
			}
			if serr != nil {
				return
			}
		}
	}
}

// ExcludedItem is one item the caller asked excluded at chat-request time
// (spec §4.1's `excluded_items?[]` field on /chat/stream).
type ExcludedItem struct {
	ItemID   string
	Category exclusion.Category
}

// SourceFor reports the configured connector-variant name that owns
// category, used as the exclusion store's per-item source key.
func (o *Orchestrator) SourceFor(category exclusion.Category) string {
	return o.sourceFor(category)
}

func (o *Orchestrator) sourceFor(category exclusion.Category) string {
	if category == exclusion.CategoryKnowledgeDocuments {
		return o.KBSource
	}
	return o.IncidentSource
}

func (o *Orchestrator) logPrompt(incidentID string, kind promptlog.PromptType, system, userMessage, contextText string, history []string) {
	if o.PromptLog == nil {
		return
	}
	o.PromptLog.Append(time.Now().UTC(), incidentID, kind, system, userMessage, contextText, history)
}

func splitLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

func knowledgeTitles(st *State) []string {
	if st.Confluence == nil {
		return nil
	}
	out := make([]string, 0, len(st.Confluence.Documents))
	for _, d := range st.Confluence.Documents {
		out = append(out, d.Title)
	}
	return out
}

func changeIDs(st *State) []string {
	if st.Change == nil {
		return nil
	}
	var out []string
	if st.Change.TopSuspect != nil {
		out = append(out, st.Change.TopSuspect.Record.ChangeID)
	}
	for _, s := range st.Change.HighCorrelation {
		out = append(out, s.Record.ChangeID)
	}
	for _, s := range st.Change.MediumCorrelation {
		out = append(out, s.Record.ChangeID)
	}
	return out
}
