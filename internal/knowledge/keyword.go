package knowledge

import (
	"context"
	"strings"

	"github.com/fyrsmithlabs/ticketd/internal/ticket"
)

// Keyword ranks articles by how many query tokens they contain. A query
// token found in the title or tags scores 1, one found only in the content
// scores 0.5; the similarity is the mean over query tokens. A query equal
// to an article tag scores 1.
type Keyword struct {
	articles []Article
	index    []keywordEntry
}

type keywordEntry struct {
	tags    map[string]struct{}
	strong  map[string]struct{}
	content map[string]struct{}
}

var _ Searcher = (*Keyword)(nil)

// NewKeyword indexes articles.
func NewKeyword(articles []Article) *Keyword {
	k := &Keyword{
		articles: articles,
		index:    make([]keywordEntry, len(articles)),
	}
	for i, a := range articles {
		e := keywordEntry{
			tags:    make(map[string]struct{}, len(a.Tags)),
			strong:  make(map[string]struct{}),
			content: make(map[string]struct{}),
		}
		for _, tag := range a.Tags {
			e.tags[strings.ToLower(tag)] = struct{}{}
			for _, tok := range tokenize(tag) {
				e.strong[tok] = struct{}{}
			}
		}
		for _, tok := range tokenize(a.Title) {
			e.strong[tok] = struct{}{}
		}
		for _, tok := range tokenize(a.Content) {
			e.content[tok] = struct{}{}
		}
		k.index[i] = e
	}
	return k
}

// Search implements Searcher. Articles with no overlap are omitted.
func (k *Keyword) Search(ctx context.Context, query string, limit int) ([]ticket.KnowledgeMatch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}

	q := strings.ToLower(strings.TrimSpace(query))
	tokens := uniqueTokens(q)
	if len(tokens) == 0 {
		return nil, nil
	}

	var ranked []rankedMatch
	for i, e := range k.index {
		var sim float64
		if _, ok := e.tags[q]; ok {
			sim = 1
		} else {
			var score float64
			for _, tok := range tokens {
				if _, ok := e.strong[tok]; ok {
					score += 1
				} else if _, ok := e.content[tok]; ok {
					score += 0.5
				}
			}
			sim = score / float64(len(tokens))
		}
		if sim == 0 {
			continue
		}
		a := k.articles[i]
		ranked = append(ranked, rankedMatch{
			match: ticket.KnowledgeMatch{
				ID:         a.ID,
				Title:      a.Title,
				Content:    strings.TrimSpace(a.Content),
				Similarity: clampSimilarity(sim),
			},
			position: i,
		})
	}

	out := sortRanked(ranked)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func uniqueTokens(s string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, tok := range tokenize(s) {
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}
	return out
}
