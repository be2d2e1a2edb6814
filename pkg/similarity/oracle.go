package similarity

import (
	"context"
	"fmt"
	"math"

	"ai-refinery-be/pkg/embedding"
)

// Oracle computes cosine similarity between texts via an embedding backend.
// It caches nothing itself; callers reuse vectors across comparisons.
type Oracle struct {
	provider embedding.EmbeddingProvider
}

func NewOracle(provider embedding.EmbeddingProvider) *Oracle {
	return &Oracle{provider: provider}
}

// Embed fetches the embedding vector for text.
func (o *Oracle) Embed(ctx context.Context, text string) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resp, err := o.provider.Generate(text, embedding.TaskSemanticSimilarity)
	if err != nil {
		return nil, err
	}

	values := make([]float64, len(resp.Embedding.Values))
	for i, v := range resp.Embedding.Values {
		values[i] = float64(v)
	}
	return values, nil
}

// FromVectors returns the cosine of two pre-computed embeddings. A zero
// vector is a backend contract violation and surfaces as an error.
func (o *Oracle) FromVectors(a, b []float64) (float64, error) {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0, fmt.Errorf("mismatched embedding dimensions: %d vs %d", len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0, fmt.Errorf("zero-magnitude embedding vector")
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// Score embeds both texts and returns their cosine similarity.
func (o *Oracle) Score(ctx context.Context, textA, textB string) (float64, error) {
	va, err := o.Embed(ctx, textA)
	if err != nil {
		return 0, err
	}
	vb, err := o.Embed(ctx, textB)
	if err != nil {
		return 0, err
	}
	return o.FromVectors(va, vb)
}
