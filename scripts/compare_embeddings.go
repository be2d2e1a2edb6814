//go:build ignore

package main

import (
	"ai-refinery-be/internal/config"
	"ai-refinery-be/pkg/embedding"
	"ai-refinery-be/pkg/embedding/jina"
	"fmt"
	"log"
	"math"
)

// CosineSimilarity calculates similarity between two vectors
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0.0
	}
	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i] * b[i])
		normA += float64(a[i] * a[i])
		normB += float64(b[i] * b[i])
	}
	if normA == 0 || normB == 0 {
		return 0.0
	}
	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

func main() {
	cfg := config.Load()

	// 1. Initialize Providers
	fmt.Println("--- Initializing Providers ---")
	gemini := embedding.NewGeminiProvider(cfg.Keys.GoogleGemini)
	jinaProv := jina.NewJinaProvider(cfg.Keys.Jina)

	// 2. Define Test Cases
	// These mirror what the convergence check sees: a draft, a revision that
	// only tightens the wording, and an answer to a different question.
	draft := "Caching reduces latency by keeping frequently accessed data close to the consumer."
	revision := "Caching lowers latency by holding hot data near its consumers."
	unrelated := "Quantum physics explores the nature of particles."

	fmt.Println("\n--- Generating Embeddings ---")

	// Helper to generate and print info
	generate := func(name string, p embedding.EmbeddingProvider, t1, t2, t3 string) ([]float32, []float32, []float32) {
		fmt.Printf("\n[%s] Generating...\n", name)

		v1, err := p.Generate(t1, embedding.TaskSemanticSimilarity)
		if err != nil {
			log.Printf("Error %s (Draft): %v", name, err)
			return nil, nil, nil
		}
		fmt.Printf("[%s] Draft Dimensions: %d\n", name, len(v1.Embedding.Values))

		v2, err := p.Generate(t2, embedding.TaskSemanticSimilarity)
		if err != nil {
			log.Printf("Error %s (Revision): %v", name, err)
			return nil, nil, nil
		}

		v3, err := p.Generate(t3, embedding.TaskSemanticSimilarity)
		if err != nil {
			log.Printf("Error %s (Unrelated): %v", name, err)
			return nil, nil, nil
		}

		return v1.Embedding.Values, v2.Embedding.Values, v3.Embedding.Values
	}

	// 3. Run Gemini
	g1, g2, g3 := generate("GEMINI", gemini, draft, revision, unrelated)

	// 4. Run Jina
	j1, j2, j3 := generate("JINA", jinaProv, draft, revision, unrelated)

	// 5. Compare Similarity
	fmt.Println("\n--- Convergence Signal Comparison ---")
	fmt.Printf("(Configured threshold: %.2f, 1.0 = identical)\n", cfg.Refine.SimilarityThreshold)

	if g1 != nil && g2 != nil && g3 != nil {
		fmt.Printf("\n[GEMINI]\n")
		fmt.Printf("Similarity (Draft vs Revision - Converging): %.4f\n", CosineSimilarity(g1, g2))
		fmt.Printf("Similarity (Draft vs Unrelated - Divergent): %.4f\n", CosineSimilarity(g1, g3))
	}

	if j1 != nil && j2 != nil && j3 != nil {
		fmt.Printf("\n[JINA]\n")
		fmt.Printf("Similarity (Draft vs Revision - Converging): %.4f\n", CosineSimilarity(j1, j2))
		fmt.Printf("Similarity (Draft vs Unrelated - Divergent): %.4f\n", CosineSimilarity(j1, j3))
	}

	fmt.Println("\n--- Conclusion ---")
	fmt.Println("A light revision should score above the threshold, an unrelated answer well below it.")
	fmt.Println("If the converging pair lands under the threshold, lower REFINE_SIMILARITY_THRESHOLD.")
}
