package knowledge

import (
	"context"
	"sort"
	"strings"
	"unicode"

	"github.com/fyrsmithlabs/ticketd/internal/ticket"
)

// Searcher finds knowledge-base articles relevant to a query.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]ticket.KnowledgeMatch, error)
}

// tokenize lowercases s and splits it on anything that is not a letter or
// digit. Hyphenated intents such as "reset-password" become two tokens.
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// rankedMatch carries corpus position for a stable tie-break.
type rankedMatch struct {
	match    ticket.KnowledgeMatch
	position int
}

func sortRanked(ranked []rankedMatch) []ticket.KnowledgeMatch {
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].match.Similarity != ranked[j].match.Similarity {
			return ranked[i].match.Similarity > ranked[j].match.Similarity
		}
		return ranked[i].position < ranked[j].position
	})
	out := make([]ticket.KnowledgeMatch, len(ranked))
	for i, r := range ranked {
		out[i] = r.match
	}
	return out
}

func clampSimilarity(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
