package memory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Record is one remembered fact. Records are immutable once written and are
// never updated or evicted; the store grows monotonically.
type Record struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"embedding"`
	CreatedAt time.Time `json:"created_at"`
}

// TextID derives the stable record id from the text itself, so identical
// text always maps to the identical id. Duplicates are still allowed: the
// store is an append-only log, not a set.
func TextID(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// NewRecord builds a record for text with its embedding.
func NewRecord(text string, embedding []float32) Record {
	return Record{
		ID:        TextID(text),
		Text:      text,
		Embedding: embedding,
		CreatedAt: time.Now(),
	}
}

// Embedder converts text to a fixed-dimension vector.
// Implementations: the fallback chain in memory/embedder (ONNX, Ollama,
// deterministic hash).
type Embedder interface {
	// Embed converts a single text to an embedding vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int
}

// Bank is the memory behaviour reasoning pipelines rely on. Both *Store and
// the chromem-backed bank implement it.
type Bank interface {
	// Remember persists text as a new memory and returns its id.
	// Empty text is a no-op returning "".
	Remember(ctx context.Context, text string) (string, error)

	// Recall returns the k most relevant remembered texts for the query,
	// most relevant first. An empty store yields an empty result, not an
	// error.
	Recall(ctx context.Context, query string, k int) ([]string, error)
}
