package knowledge

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/fyrsmithlabs/ticketd/internal/ticket"
)

var tracer = otel.Tracer("github.com/fyrsmithlabs/ticketd/internal/knowledge")

const (
	chromemCollection = "knowledge"
	metaTitle         = "title"
	metaPosition      = "position"
)

// ChromemConfig configures the embedded vector store.
type ChromemConfig struct {
	// Path persists the database when set; empty keeps it in memory.
	Path string
	// Compress gzips persisted documents.
	Compress bool
}

// Chromem searches an embedded chromem-go collection.
type Chromem struct {
	db         *chromem.DB
	collection *chromem.Collection
	embedder   Embedder
}

var _ Searcher = (*Chromem)(nil)

// NewChromem opens the database and indexes articles into it. Existing
// documents with the same id are overwritten.
func NewChromem(ctx context.Context, cfg ChromemConfig, embedder Embedder, articles []Article) (*Chromem, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}

	var (
		db  *chromem.DB
		err error
	)
	if cfg.Path == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(cfg.Path, cfg.Compress)
		if err != nil {
			return nil, fmt.Errorf("opening chromem db at %s: %w", cfg.Path, err)
		}
	}

	embed := func(ctx context.Context, text string) ([]float32, error) {
		return embedder.EmbedQuery(ctx, text)
	}
	collection, err := db.GetOrCreateCollection(chromemCollection, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("getting/creating collection %s: %w", chromemCollection, err)
	}

	c := &Chromem{db: db, collection: collection, embedder: embedder}
	if err := c.index(ctx, articles); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Chromem) index(ctx context.Context, articles []Article) error {
	if len(articles) == 0 {
		return nil
	}

	texts := make([]string, len(articles))
	for i, a := range articles {
		texts[i] = articleText(a)
	}
	embeddings, err := c.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding corpus: %w", err)
	}

	docs := make([]chromem.Document, len(articles))
	for i, a := range articles {
		docs[i] = chromem.Document{
			ID:      a.ID,
			Content: strings.TrimSpace(a.Content),
			Metadata: map[string]string{
				metaTitle:    a.Title,
				metaPosition: strconv.Itoa(i),
			},
			Embedding: embeddings[i],
		}
	}

	// Concurrency of 1 since embeddings are precomputed.
	if err := c.collection.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("adding documents: %w", err)
	}
	return nil
}

// Search implements Searcher.
func (c *Chromem) Search(ctx context.Context, query string, limit int) ([]ticket.KnowledgeMatch, error) {
	ctx, span := tracer.Start(ctx, "Chromem.Search")
	defer span.End()
	span.SetAttributes(attribute.Int("limit", limit))

	if limit <= 0 || strings.TrimSpace(query) == "" {
		return nil, nil
	}

	// chromem rejects n greater than the collection size.
	n := limit
	if count := c.collection.Count(); count < n {
		n = count
	}
	if n == 0 {
		return nil, nil
	}

	results, err := c.collection.Query(ctx, query, n, nil, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying collection %s: %w", chromemCollection, err)
	}

	ranked := make([]rankedMatch, 0, len(results))
	for _, r := range results {
		pos, err := strconv.Atoi(r.Metadata[metaPosition])
		if err != nil {
			pos = len(ranked)
		}
		ranked = append(ranked, rankedMatch{
			match: ticket.KnowledgeMatch{
				ID:         r.ID,
				Title:      r.Metadata[metaTitle],
				Content:    r.Content,
				Similarity: clampSimilarity(float64(r.Similarity)),
			},
			position: pos,
		})
	}

	span.SetAttributes(attribute.Int("results_count", len(ranked)))
	span.SetStatus(codes.Ok, "success")
	return sortRanked(ranked), nil
}

// Count returns the number of indexed articles.
func (c *Chromem) Count() int {
	return c.collection.Count()
}

func articleText(a Article) string {
	return a.Title + "\n" + strings.Join(a.Tags, " ") + "\n" + a.Content
}
