// Package chromem provides a recall bank backed by an embedded chromem-go
// database. It is an alternative to the flat-index store for deployments
// that want compressed persistence and cosine ranking managed by the
// database instead of the hand-rolled index/log pair.
package chromem

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	chromem "github.com/philippgille/chromem-go"
	log "github.com/sirupsen/logrus"

	"github.com/ratatoskr-ai/ratatoskr-go/memory"
)

const collectionName = "memories"

// Bank stores memories in a chromem-go collection.
type Bank struct {
	embedder memory.Embedder
	col      *chromem.Collection
	mu       sync.Mutex
}

// Open creates or reopens a chromem-backed bank persisted under dir. An
// empty dir keeps everything in memory, mainly for tests.
func Open(dir string, embedder memory.Embedder) (*Bank, error) {
	var db *chromem.DB
	var err error
	if dir == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(dir, true)
		if err != nil {
			return nil, fmt.Errorf("open chromem db: %w", err)
		}
	}

	col, err := db.GetOrCreateCollection(collectionName, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("open chromem collection: %w", err)
	}
	log.Infof("memory: chromem bank ready with %d memories", col.Count())
	return &Bank{embedder: embedder, col: col}, nil
}

// Remember embeds text and adds it as a document. Empty or whitespace-only
// text is a no-op returning "".
func (b *Bank) Remember(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}

	vec, err := b.embedder.Embed(ctx, text)
	if err != nil {
		return "", fmt.Errorf("embed memory: %w", err)
	}

	// The record id is the stable content hash; the chromem document key
	// stays random so repeated text is stored as separate memories.
	id := memory.TextID(text)
	doc := chromem.Document{
		ID:        uuid.NewString(),
		Content:   text,
		Embedding: vec,
		Metadata:  map[string]string{"content_id": id},
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.col.AddDocument(ctx, doc); err != nil {
		return "", fmt.Errorf("add document: %w", err)
	}
	return id, nil
}

// Recall returns the k most similar remembered texts for query. k is
// clamped to the collection size; an empty collection or empty query yields
// an empty result.
func (b *Bank) Recall(ctx context.Context, query string, k int) ([]string, error) {
	if k <= 0 {
		k = memory.DefaultRecallK
	}
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}

	b.mu.Lock()
	count := b.col.Count()
	b.mu.Unlock()
	if count == 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}

	vec, err := b.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	results, err := b.col.QueryEmbedding(ctx, vec, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	out := make([]string, 0, len(results))
	for _, res := range results {
		out = append(out, res.Content)
	}
	return out, nil
}

// Len reports the number of stored memories.
func (b *Bank) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.col.Count()
}

var _ memory.Bank = (*Bank)(nil)
