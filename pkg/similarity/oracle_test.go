package similarity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-refinery-be/pkg/embedding"
)

type fixedProvider struct {
	vectors map[string][]float32
}

func (p *fixedProvider) Generate(text string, taskType string) (*embedding.EmbeddingResponse, error) {
	return &embedding.EmbeddingResponse{
		Embedding: embedding.EmbeddingResponseEmbedding{Values: p.vectors[text]},
	}, nil
}

func TestScoreComputesCosine(t *testing.T) {
	oracle := NewOracle(&fixedProvider{vectors: map[string][]float32{
		"a": {1, 0},
		"b": {0, 1},
		"c": {1, 0},
		"d": {-1, 0},
	}})

	cases := []struct {
		name   string
		first  string
		second string
		want   float64
	}{
		{"orthogonal", "a", "b", 0},
		{"identical", "a", "c", 1},
		{"opposite", "a", "d", -1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := oracle.Score(context.Background(), tc.first, tc.second)
			require.NoError(t, err)
			assert.InDelta(t, tc.want, got, 1e-9)
		})
	}
}

func TestFromVectorsRejectsDegenerateInput(t *testing.T) {
	oracle := NewOracle(&fixedProvider{})

	_, err := oracle.FromVectors([]float64{0, 0}, []float64{1, 0})
	assert.Error(t, err)

	_, err = oracle.FromVectors([]float64{1, 0, 0}, []float64{1, 0})
	assert.Error(t, err)

	_, err = oracle.FromVectors(nil, nil)
	assert.Error(t, err)
}

func TestEmbedHonorsContext(t *testing.T) {
	oracle := NewOracle(&fixedProvider{vectors: map[string][]float32{"a": {1}}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := oracle.Embed(ctx, "a")
	assert.ErrorIs(t, err, context.Canceled)
}
