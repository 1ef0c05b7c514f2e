// Package hash provides a deterministic embedder that needs no model files
// and no network. It is the guaranteed last link of the embedder fallback
// chain: recall quality is poor, but identical text always embeds to the
// identical vector, so remembered facts remain retrievable by exact phrasing.
package hash

import (
	"context"
	"hash/fnv"
	"math"
)

// Dimensions matches all-MiniLM-L6-v2 so the hash embedder can stand in for
// the real model against an existing index.
const Dimensions = 384

// Embedder generates pseudo-random unit vectors seeded by the text hash.
type Embedder struct {
	dimensions int
}

// New creates a hash embedder with the default dimensions.
func New() *Embedder {
	return &Embedder{dimensions: Dimensions}
}

// Embed derives a deterministic embedding from the FNV-64a hash of text.
func (e *Embedder) Embed(_ context.Context, text string) ([]float32, error) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, e.dimensions)
	for i := range vec {
		// LCG step, constants from Knuth's MMIX.
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float32(int64(seed)) / float32(math.MaxInt64)
	}
	return normalize(vec), nil
}

// Dimensions returns the embedding vector size.
func (e *Embedder) Dimensions() int { return e.dimensions }

func normalize(vec []float32) []float32 {
	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec
	}
	inv := 1 / float32(math.Sqrt(float64(norm)))
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = v * inv
	}
	return out
}
