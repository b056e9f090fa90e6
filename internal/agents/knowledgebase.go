package agents

import (
	"context"
	"strings"
	"unicode"

	"github.com/jmgress/smartrecover/internal/apperr"
	kbconn "github.com/jmgress/smartrecover/internal/connectors/kb"
	"github.com/jmgress/smartrecover/internal/incident"
	"github.com/jmgress/smartrecover/internal/similarity"
)

const defaultKnowledgeBasePrompt = `You are a knowledge-base assistant. Given an incident and a set of candidate ` +
	`knowledge articles, explain which articles are most relevant to resolving the incident.`

const maxKnowledgeContentChars = 2000

// KnowledgeDocumentResult is one ranked knowledge article in the
// Knowledge-base agent's output.
type KnowledgeDocumentResult struct {
	DocID          string
	Title          string
	Content        string
	Tags           []string
	RelevanceScore float64
}

// KnowledgeBaseResult is the Knowledge-base agent's output.
type KnowledgeBaseResult struct {
	Documents []KnowledgeDocumentResult
}

func (KnowledgeBaseResult) isAgentResult() {}

// KnowledgeBase is the Knowledge-base agent (spec §4.3).
type KnowledgeBase struct {
	Connector kbconn.Connector
	K         int
	Prompts   PromptProvider
}

func (a *KnowledgeBase) Name() string          { return NameKnowledgeBase }
func (a *KnowledgeBase) DefaultPrompt() string { return defaultKnowledgeBasePrompt }

func (a *KnowledgeBase) EffectivePrompt() string {
	return effectivePrompt(a.Prompts, a.Name(), a.DefaultPrompt())
}

func (a *KnowledgeBase) Query(ctx context.Context, inc incident.Incident) (Result, error) {
	queryText := inc.Title + " " + inc.Description + " " + strings.Join(inc.AffectedServices, " ")
	terms := tokensToSlice(similarity.Tokenize(queryText))

	docs, err := a.Connector.Search(ctx, terms, a.K)
	if err != nil {
		return nil, apperr.Wrap(apperr.UpstreamFailure, "search knowledge base", err)
	}

	querySet := similarity.SetOf(terms)
	result := KnowledgeBaseResult{}
	for _, d := range docs {
		docSet := similarity.Tokenize(d.Title + " " + d.Content + " " + strings.Join(d.Tags, " "))
		result.Documents = append(result.Documents, KnowledgeDocumentResult{
			DocID:          d.DocID,
			Title:          d.Title,
			Content:        truncateAtWordBoundary(d.Content, maxKnowledgeContentChars),
			Tags:           d.Tags,
			RelevanceScore: similarity.Jaccard(querySet, docSet),
		})
	}
	return result, nil
}

func tokensToSlice(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	return out
}

// truncateAtWordBoundary cuts s to at most max bytes, backing off to the
// last preceding whitespace, and appends "...". If no whitespace precedes
// the limit, it cuts at exactly max bytes, splitting that word.
func truncateAtWordBoundary(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !unicode.IsSpace(rune(s[cut])) {
		cut--
	}
	if cut == 0 {
		cut = max
	}
	return strings.TrimRight(s[:cut], " \t\n") + "..."
}
