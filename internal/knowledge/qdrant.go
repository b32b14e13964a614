package knowledge

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"google.golang.org/grpc"

	"github.com/fyrsmithlabs/ticketd/internal/ticket"
)

// Payload fields written by Seed and read by Search.
const (
	payloadArticleID = "article_id"
	payloadTitle     = "title"
	payloadContent   = "content"
	payloadPosition  = "position"
)

// articleNamespace derives stable point ids from article ids.
var articleNamespace = uuid.MustParse("8f1c7a52-3f0e-4b8e-9a55-2a1d6f0c9e41")

// QdrantConfig configures the Qdrant searcher.
type QdrantConfig struct {
	Host           string
	Port           int
	UseTLS         bool
	APIKey         string
	Collection     string
	MaxMessageSize int
}

// Qdrant searches an external Qdrant collection over gRPC.
type Qdrant struct {
	client     *qdrant.Client
	collection string
	embedder   Embedder
}

var _ Searcher = (*Qdrant)(nil)

// NewQdrant connects to Qdrant. It does not touch the collection; call
// Seed to create and populate it.
func NewQdrant(cfg QdrantConfig, embedder Embedder) (*Qdrant, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	cfg.Collection = CollectionName(cfg.Collection)
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = 16 * 1024 * 1024
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		UseTLS: cfg.UseTLS,
		APIKey: cfg.APIKey,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(cfg.MaxMessageSize),
				grpc.MaxCallSendMsgSize(cfg.MaxMessageSize),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to qdrant %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return &Qdrant{client: client, collection: cfg.Collection, embedder: embedder}, nil
}

// Seed creates the collection if needed and upserts articles. Point ids are
// derived from article ids, so seeding twice is harmless.
func (q *Qdrant) Seed(ctx context.Context, articles []Article) error {
	ctx, span := tracer.Start(ctx, "Qdrant.Seed")
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", q.collection),
		attribute.Int("document_count", len(articles)),
	)

	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("checking collection %s: %w", q.collection, err)
	}
	if !exists {
		err := q.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: q.collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(q.embedder.Dimension()),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			span.RecordError(err)
			return fmt.Errorf("creating collection %s: %w", q.collection, err)
		}
	}
	if len(articles) == 0 {
		return nil
	}

	texts := make([]string, len(articles))
	for i, a := range articles {
		texts[i] = articleText(a)
	}
	embeddings, err := q.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding corpus: %w", err)
	}

	points := make([]*qdrant.PointStruct, len(articles))
	for i, a := range articles {
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(uuid.NewSHA1(articleNamespace, []byte(a.ID)).String()),
			Vectors: qdrant.NewVectors(embeddings[i]...),
			Payload: map[string]*qdrant.Value{
				payloadArticleID: qdrant.NewValueString(a.ID),
				payloadTitle:     qdrant.NewValueString(a.Title),
				payloadContent:   qdrant.NewValueString(strings.TrimSpace(a.Content)),
				payloadPosition:  qdrant.NewValueInt(int64(i)),
			},
		}
	}

	_, err = q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("upserting points to collection %s: %w", q.collection, err)
	}
	return nil
}

// Search implements Searcher.
func (q *Qdrant) Search(ctx context.Context, query string, limit int) ([]ticket.KnowledgeMatch, error) {
	ctx, span := tracer.Start(ctx, "Qdrant.Search")
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", q.collection),
		attribute.Int("limit", limit),
	)

	if limit <= 0 || strings.TrimSpace(query) == "" {
		return nil, nil
	}

	vec, err := q.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	points, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(vec...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("searching collection %s: %w", q.collection, err)
	}

	ranked := make([]rankedMatch, 0, len(points))
	for i, p := range points {
		rm := rankedMatch{
			match:    ticket.KnowledgeMatch{Similarity: clampSimilarity(float64(p.Score))},
			position: i,
		}
		for k, v := range p.Payload {
			switch val := v.Kind.(type) {
			case *qdrant.Value_StringValue:
				switch k {
				case payloadArticleID:
					rm.match.ID = val.StringValue
				case payloadTitle:
					rm.match.Title = val.StringValue
				case payloadContent:
					rm.match.Content = val.StringValue
				}
			case *qdrant.Value_IntegerValue:
				if k == payloadPosition {
					rm.position = int(val.IntegerValue)
				}
			}
		}
		ranked = append(ranked, rm)
	}

	span.SetAttributes(attribute.Int("results_count", len(ranked)))
	span.SetStatus(codes.Ok, "success")
	return sortRanked(ranked), nil
}

// Close releases the gRPC connection.
func (q *Qdrant) Close() error {
	return q.client.Close()
}
