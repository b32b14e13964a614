package knowledge

import (
	"context"
	"hash/fnv"
	"math"
)

// Embedder turns text into a fixed-size vector.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// DefaultHashingDimension is the vector size of NewHashingEmbedder(0).
const DefaultHashingDimension = 256

// HashingEmbedder maps tokens into a fixed number of buckets (the hashing
// trick) and L2-normalizes the counts. It needs no model download and is
// deterministic, which makes it suitable for tests and small corpora.
type HashingEmbedder struct {
	dim int
}

var _ Embedder = (*HashingEmbedder)(nil)

// NewHashingEmbedder creates an embedder with dim buckets.
func NewHashingEmbedder(dim int) *HashingEmbedder {
	if dim <= 0 {
		dim = DefaultHashingDimension
	}
	return &HashingEmbedder{dim: dim}
}

// Dimension implements Embedder.
func (h *HashingEmbedder) Dimension() int { return h.dim }

// EmbedDocuments implements Embedder.
func (h *HashingEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := h.EmbedQuery(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// EmbedQuery implements Embedder. Text without tokens yields a unit vector
// in bucket zero so the result is always normalized.
func (h *HashingEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vec := make([]float32, h.dim)
	for _, tok := range tokenize(text) {
		f := fnv.New32a()
		_, _ = f.Write([]byte(tok))
		sum := f.Sum32()
		idx := int(sum % uint32(h.dim))
		// The top bit picks the sign so collisions tend to cancel.
		if sum&0x80000000 != 0 {
			vec[idx]--
		} else {
			vec[idx]++
		}
	}

	var norm float64
	for _, x := range vec {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		vec[0] = 1
		return vec, nil
	}
	inv := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= inv
	}
	return vec, nil
}
