// Package embedder selects and wraps a text embedding backend.
//
// Backends are tried in order of quality at first use: ONNX sentence
// transformer, then a local Ollama server, then the deterministic hash
// embedder. A backend that fails to come up is logged and skipped, never
// surfaced as a startup error; the hash embedder guarantees the chain always
// terminates with a working Embedder.
package embedder

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/dgraph-io/ristretto"
	log "github.com/sirupsen/logrus"

	"github.com/ratatoskr-ai/ratatoskr-go/memory"
	"github.com/ratatoskr-ai/ratatoskr-go/memory/embedder/hash"
	"github.com/ratatoskr-ai/ratatoskr-go/memory/embedder/ollama"
	"github.com/ratatoskr-ai/ratatoskr-go/memory/embedder/onnx"
)

// ErrEmptyText reports an Embed call with empty or whitespace-only text.
var ErrEmptyText = errors.New("embedder: empty text")

// Config selects and configures the embedding backends.
type Config struct {
	// ONNXModelPath enables the ONNX backend when set.
	ONNXModelPath     string
	ONNXTokenizerPath string
	ONNXLibraryPath   string

	// OllamaURL or OllamaModel enables the Ollama backend when set.
	OllamaURL   string
	OllamaModel string

	// Dimensions is the expected vector size. Zero lets the chosen
	// backend decide.
	Dimensions int
}

// Service is the embedding entry point used by the memory store. The backend
// is chosen lazily on first use, so constructing a Service is always cheap
// and cannot fail.
type Service struct {
	cfg   Config
	cache *ristretto.Cache

	mu      sync.Mutex
	inited  bool
	backend memory.Embedder
}

// New creates an embedding service. No model is loaded until the first
// Embed or Dimensions call.
func New(cfg Config) *Service {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10_000,
		MaxCost:     32 << 20,
		BufferItems: 64,
	})
	if err != nil {
		log.Warnf("embedder: cache disabled: %v", err)
		cache = nil
	}
	return &Service{cfg: cfg, cache: cache}
}

// init picks the first backend that comes up. Called with mu held.
func (s *Service) init(ctx context.Context) {
	if s.inited {
		return
	}
	s.inited = true

	if s.cfg.ONNXModelPath != "" {
		backend, err := onnx.New(onnx.Config{
			ModelPath:     s.cfg.ONNXModelPath,
			TokenizerPath: s.cfg.ONNXTokenizerPath,
			LibraryPath:   s.cfg.ONNXLibraryPath,
			Dimensions:    s.cfg.Dimensions,
		})
		if err == nil {
			log.Info("embedder: using onnx backend")
			s.backend = backend
			return
		}
		log.Warnf("embedder: onnx backend unavailable: %v", err)
	}

	if s.cfg.OllamaURL != "" || s.cfg.OllamaModel != "" {
		backend := ollama.New(ollama.Config{
			BaseURL:    s.cfg.OllamaURL,
			Model:      s.cfg.OllamaModel,
			Dimensions: s.cfg.Dimensions,
		})
		// One probe call decides availability.
		if _, err := backend.Embed(ctx, "embedder probe"); err != nil {
			log.Warnf("embedder: ollama backend unavailable: %v", err)
		} else {
			log.Info("embedder: using ollama backend")
			s.backend = backend
			return
		}
	}

	log.Info("embedder: using deterministic hash backend")
	s.backend = hash.New()
}

// Embed converts text to a vector using the selected backend, consulting the
// embedding cache first.
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	if s.cache != nil {
		if cached, ok := s.cache.Get(text); ok {
			if vec, ok := cached.([]float32); ok {
				return vec, nil
			}
		}
	}

	s.mu.Lock()
	s.init(ctx)
	backend := s.backend
	s.mu.Unlock()

	vec, err := backend.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.Set(text, vec, int64(len(vec))*4)
	}
	return vec, nil
}

// Dimensions returns the vector size of the selected backend, initializing
// the chain if needed.
func (s *Service) Dimensions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.init(context.Background())
	return s.backend.Dimensions()
}

var _ memory.Embedder = (*Service)(nil)
