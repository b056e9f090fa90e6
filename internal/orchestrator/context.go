package orchestrator

import (
	"fmt"
	"strings"
)

// buildContext renders a deterministic text context for the LLM (used for
// both synthesis and chat, spec §4.2): top-suspect change; up to maxPerSection
// similar historical incidents; previous resolutions; up to maxPerSection
// knowledge articles; up to 5 logs; up to 5 events; summary counts. Empty
// sections are omitted.
func buildContext(st *State, maxPerSection int) string {
	var b strings.Builder

	if st.Change != nil && st.Change.TopSuspect != nil {
		ts := st.Change.TopSuspect
		fmt.Fprintf(&b, "## Top Suspect Change\n%s (deployed %s, correlation %.2f): %s\n\n",
			ts.Record.ChangeID, ts.Record.DeployedAt.Format("2006-01-02T15:04:05Z07:00"), ts.CorrelationScore, ts.Record.Description)
	}

	if st.ServiceNow != nil && len(st.ServiceNow.Similar) > 0 {
		b.WriteString("## Similar Historical Incidents\n")
		for i, sim := range st.ServiceNow.Similar {
			if i >= maxPerSection {
				break
			}
			fmt.Fprintf(&b, "- %s (score %.2f): %s\n", sim.Incident.ID, sim.Score, sim.Incident.Title)
		}
		b.WriteString("\n")

		var resolutions []string
		for _, sim := range st.ServiceNow.Similar {
			if sim.Ticket.Resolution != "" {
				resolutions = append(resolutions, fmt.Sprintf("- %s: %s", sim.Incident.ID, sim.Ticket.Resolution))
			}
		}
		if len(resolutions) > 0 {
			b.WriteString("## Previous Resolutions\n")
			b.WriteString(strings.Join(resolutions, "\n"))
			b.WriteString("\n\n")
		}
	}

	if st.Confluence != nil && len(st.Confluence.Documents) > 0 {
		b.WriteString("## Relevant Knowledge Articles\n")
		for i, doc := range st.Confluence.Documents {
			if i >= maxPerSection {
				break
			}
			fmt.Fprintf(&b, "- %s (relevance %.2f): %s\n", doc.Title, doc.RelevanceScore, doc.Content)
		}
		b.WriteString("\n")
	}

	if st.Logs != nil && len(st.Logs.Items) > 0 {
		b.WriteString("## Log Entries\n")
		for i, it := range st.Logs.Items {
			if i >= 5 {
				break
			}
			fmt.Fprintf(&b, "- [%s] %s: %s (confidence %.2f)\n", it.Item.Severity, it.Item.Service, it.Item.Message, it.ConfidenceScore)
		}
		b.WriteString("\n")
	}

	if st.Events != nil && len(st.Events.Items) > 0 {
		b.WriteString("## Events\n")
		for i, it := range st.Events.Items {
			if i >= 5 {
				break
			}
			fmt.Fprintf(&b, "- [%s] %s: %s (confidence %.2f)\n", it.Item.Severity, it.Item.Service, it.Item.Message, it.ConfidenceScore)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Summary Counts\n")
	fmt.Fprintf(&b, "- similar incidents: %d\n", countOr0(st.ServiceNow != nil, func() int { return len(st.ServiceNow.Similar) }))
	fmt.Fprintf(&b, "- knowledge articles: %d\n", countOr0(st.Confluence != nil, func() int { return len(st.Confluence.Documents) }))
	if st.Logs != nil {
		fmt.Fprintf(&b, "- logs: %d (error=%d, warning=%d)\n", st.Logs.Counts.Total, st.Logs.Counts.Error, st.Logs.Counts.Warning)
	}
	if st.Events != nil {
		fmt.Fprintf(&b, "- events: %d (critical=%d, warning=%d)\n", st.Events.Counts.Total, st.Events.Counts.Critical, st.Events.Counts.Warning)
	}

	return b.String()
}

func countOr0(ok bool, n func() int) int {
	if !ok {
		return 0
	}
	return n()
}
