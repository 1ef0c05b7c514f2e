package memory

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
)

const (
	indexFile = "index.gob"
	docsFile  = "documents.jsonl"

	// DefaultRecallK is the neighbor count used when Recall is called
	// with k <= 0.
	DefaultRecallK = 2

	// Long lines: a document record carries its embedding inline.
	maxDocLineBytes = 8 * 1024 * 1024
)

// Store is the long-term memory store: a vector index paired with an ordered
// document log. Outside of a mutation, index.Len() == len(docs) and index
// position i corresponds to docs[i].
//
// A single mutex serializes Remember and the index/log reads inside Recall.
// Embedding runs outside the lock; only the Embedder's own initialization
// guard applies there.
type Store struct {
	dir      string
	embedder Embedder
	recallK  int

	mu    sync.Mutex
	index *Index
	docs  []Record
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithRecallK sets the default neighbor count for Recall.
func WithRecallK(k int) StoreOption {
	return func(s *Store) {
		if k > 0 {
			s.recallK = k
		}
	}
}

// Open creates or reopens the store persisted under dir. A directory with no
// persisted state yields an empty store; a directory with unreadable or
// mismatched state is reset to empty with a logged warning. Open never fails
// because of corrupt memory files.
func Open(dir string, embedder Embedder, opts ...StoreOption) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create memory dir: %w", err)
	}
	s := &Store{dir: dir, embedder: embedder, recallK: DefaultRecallK}
	for _, opt := range opts {
		opt(s)
	}
	s.load()
	return s, nil
}

func (s *Store) load() {
	index, idxErr := LoadIndex(filepath.Join(s.dir, indexFile))
	docs, docErr := readDocLog(filepath.Join(s.dir, docsFile))

	if os.IsNotExist(idxErr) && os.IsNotExist(docErr) {
		return // first run, nothing persisted yet
	}
	switch {
	case idxErr != nil:
		log.Warnf("memory: resetting store, index unreadable: %v", idxErr)
	case docErr != nil:
		log.Warnf("memory: resetting store, document log unreadable: %v", docErr)
	case index.Len() != len(docs):
		log.Warnf("memory: resetting store, index has %d vectors but log has %d documents", index.Len(), len(docs))
	default:
		s.index = index
		s.docs = docs
		log.Infof("memory: loaded %d memories from %s", len(docs), s.dir)
		return
	}
	s.reset()
}

// reset drops all persisted state. Stale files are removed so the next
// Remember starts from a consistent pair.
func (s *Store) reset() {
	s.index = nil
	s.docs = nil
	_ = os.Remove(filepath.Join(s.dir, indexFile))
	_ = os.Remove(filepath.Join(s.dir, docsFile))
}

// Remember embeds text, appends it to the document log and the index, and
// persists both before returning the record id. Empty or whitespace-only
// text is a no-op returning "".
func (s *Store) Remember(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}

	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return "", fmt.Errorf("embed memory: %w", err)
	}
	rec := NewRecord(text, vec)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.index == nil {
		s.index = NewIndex(len(vec))
	}
	if _, err := s.index.Add(vec); err != nil {
		return "", err
	}
	s.docs = append(s.docs, rec)

	// Append the document first, then snapshot the index. If the process
	// dies in between, the next Open sees a length mismatch and resets.
	if err := appendDocLine(filepath.Join(s.dir, docsFile), rec); err != nil {
		return "", fmt.Errorf("persist document: %w", err)
	}
	if err := s.index.Save(filepath.Join(s.dir, indexFile)); err != nil {
		return "", fmt.Errorf("persist index: %w", err)
	}
	return rec.ID, nil
}

// Recall returns the k most relevant remembered texts for query, most
// relevant first. k <= 0 uses the store default. An empty store or empty
// query returns an empty result without touching the embedder.
func (s *Store) Recall(ctx context.Context, query string, k int) ([]string, error) {
	if k <= 0 {
		k = s.recallK
	}
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}

	s.mu.Lock()
	empty := s.index == nil || s.index.Len() == 0
	s.mu.Unlock()
	if empty {
		return nil, nil
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	hits, err := s.index.Search(vec, k)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(hits))
	for _, h := range hits {
		out = append(out, s.docs[h.Position].Text)
	}
	return out, nil
}

// Len reports the number of stored memories.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs)
}

var _ Bank = (*Store)(nil)

func appendDocLine(path string, rec Record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	if _, err := f.Write(append(b, '\n')); err != nil {
		return err
	}
	return f.Sync()
}

func readDocLog(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var docs []Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxDocLineBytes)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return nil, fmt.Errorf("parse document log: %w", err)
		}
		docs = append(docs, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read document log: %w", err)
	}
	return docs, nil
}
