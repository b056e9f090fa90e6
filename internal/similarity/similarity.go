// Package similarity implements tokenization and the weighted-Jaccard
// scoring spec §4.5 uses for incident-to-incident similarity, and the
// plain (unweighted) Jaccard used elsewhere for keyword/service overlap.
package similarity

import (
	"strings"
	"unicode"
)

// stopwords is the fixed English stopword set dropped during tokenization.
var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
	"is": true, "are": true, "was": true, "were": true, "be": true, "been": true,
	"to": true, "of": true, "in": true, "on": true, "for": true, "with": true,
	"at": true, "by": true, "from": true, "this": true, "that": true, "it": true,
	"as": true, "has": true, "have": true, "had": true, "not": true, "we": true,
	"you": true, "all": true, "can": true, "will": true, "its": true,
}

// Tokenize lowercases s, splits on non-alphanumeric runes, drops stopwords,
// and drops tokens shorter than 3 characters.
func Tokenize(s string) map[string]bool {
	out := make(map[string]bool)
	for _, field := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len(field) < 3 || stopwords[field] {
			continue
		}
		out[field] = true
	}
	return out
}

// SetOf builds a token-like set directly from a slice of already-discrete
// values (e.g. affected-service names), lowercased, with no stopword or
// length filtering.
func SetOf(vals []string) map[string]bool {
	out := make(map[string]bool, len(vals))
	for _, v := range vals {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			out[v] = true
		}
	}
	return out
}

// Jaccard computes |A ∩ B| / |A ∪ B|, defined as 0 when both sets are empty.
func Jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for k := range a {
		if b[k] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// IncidentFeatures is the minimal shape similarity.Score needs from an
// Incident, kept decoupled from the incident package to avoid an import
// cycle (incident agents live above both packages).
type IncidentFeatures struct {
	Title            string
	Description      string
	AffectedServices []string
}

// Score computes the weighted-Jaccard blend spec §4.5 defines: title
// tokens weight 0.4, description tokens weight 0.4, affected-services set
// weight 0.2.
func Score(a, b IncidentFeatures) float64 {
	titleScore := Jaccard(Tokenize(a.Title), Tokenize(b.Title))
	descScore := Jaccard(Tokenize(a.Description), Tokenize(b.Description))
	svcScore := Jaccard(SetOf(a.AffectedServices), SetOf(b.AffectedServices))
	return 0.4*titleScore + 0.4*descScore + 0.2*svcScore
}
