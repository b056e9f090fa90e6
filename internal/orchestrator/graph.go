package orchestrator

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/jmgress/smartrecover/internal/agents"
	"github.com/jmgress/smartrecover/internal/apperr"
	"github.com/jmgress/smartrecover/internal/logging"
	"github.com/jmgress/smartrecover/internal/observability"
)

// node is one step of the retrieval graph. Non-loader nodes return an
// error only to signal to the runner that graceful degradation should log
// it; they never abort the run.
type node struct {
	name     string
	fn       func(ctx context.Context, o *Orchestrator, st *State) error
	hardFail bool // true only for incident-loader: its failure aborts the run
}

// graph is the fixed sequential DAG of spec §4.2:
// incident-loader -> servicenow -> knowledge-base -> change-correlation -> logs -> events.
// Synthesis is not a graph node: it runs separately, after retrieval and
// exclusion filtering, only for /resolve and /chat/stream.
var graph = []node{
	{name: "incident-loader", hardFail: true, fn: func(ctx context.Context, o *Orchestrator, st *State) error {
		inc, err := o.IncidentConn.GetIncident(ctx, st.IncidentID)
		if err != nil {
			return err
		}
		st.Incident = inc
		return nil
	}},
	{name: "servicenow", fn: func(ctx context.Context, o *Orchestrator, st *State) error {
		res, err := o.Agents.IncidentManagement.Query(ctx, st.Incident)
		if err != nil {
			return err
		}
		r := res.(agents.SimilarIncidentsResult)
		st.ServiceNow = &r
		return nil
	}},
	{name: "knowledge-base", fn: func(ctx context.Context, o *Orchestrator, st *State) error {
		res, err := o.Agents.KnowledgeBase.Query(ctx, st.Incident)
		if err != nil {
			return err
		}
		r := res.(agents.KnowledgeBaseResult)
		st.Confluence = &r
		return nil
	}},
	{name: "change-correlation", fn: func(ctx context.Context, o *Orchestrator, st *State) error {
		res, err := o.Agents.ChangeCorrelation.Query(ctx, st.Incident)
		if err != nil {
			return err
		}
		r := res.(agents.ChangeCorrelationResult)
		st.Change = &r
		return nil
	}},
	{name: "logs", fn: func(ctx context.Context, o *Orchestrator, st *State) error {
		res, err := o.Agents.Logs.Query(ctx, st.Incident)
		if err != nil {
			return err
		}
		r := res.(agents.LogsResult)
		st.Logs = &r
		return nil
	}},
	{name: "events", fn: func(ctx context.Context, o *Orchestrator, st *State) error {
		res, err := o.Agents.Events.Query(ctx, st.Incident)
		if err != nil {
			return err
		}
		r := res.(agents.EventsResult)
		st.Events = &r
		return nil
	}},
}

// runGraph executes every node of graph in order against st. A non-loader
// node's failure is logged and leaves its state slot nil (spec §4.2's
// per-node graceful degradation); the loader's failure aborts the run with
// a hard failure, since the incident cannot be loaded at all.
func runGraph(ctx context.Context, o *Orchestrator, st *State, log zerolog.Logger) error {
	for _, n := range graph {
		ctx, span := observability.StartNodeSpan(ctx, n.name)
		logging.Trace(ctx, o.Logger, o.TraceEnabled, "orchestrator.node.enter", map[string]any{"node": n.name, "incident_id": st.IncidentID})
		err := n.fn(ctx, o, st)
		logging.Trace(ctx, o.Logger, o.TraceEnabled, "orchestrator.node.exit", map[string]any{"node": n.name, "incident_id": st.IncidentID, "error": err})
		span.End()
		if err == nil {
			continue
		}
		if n.hardFail {
			return apperr.Wrap(apperr.UpstreamFailure, "load incident", err)
		}
		log.Warn().Err(err).Str("node", n.name).Str("incident_id", st.IncidentID).Msg("orchestrator_node_degraded")
	}
	return nil
}
