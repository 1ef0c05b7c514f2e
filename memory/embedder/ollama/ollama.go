// Package ollama embeds text through a local Ollama server's /api/embed
// endpoint. It is the middle link of the embedder fallback chain: better
// vectors than the hash embedder without shipping model files, but only
// available when an Ollama daemon is running.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultBaseURL is the standard local Ollama address.
	DefaultBaseURL = "http://127.0.0.1:11434"

	// DefaultModel is the embedding model pulled by the setup docs.
	DefaultModel = "nomic-embed-text"
)

// Config configures the Ollama embedder.
type Config struct {
	// BaseURL is the Ollama server address. Empty means DefaultBaseURL.
	BaseURL string

	// Model is the embedding model name. Empty means DefaultModel.
	Model string

	// Dimensions is the expected vector size. Zero means probe the model
	// on first use.
	Dimensions int

	// Client overrides the HTTP client, mainly for tests.
	Client *http.Client
}

// Embedder converts text to vectors via a running Ollama server.
type Embedder struct {
	baseURL string
	model   string
	client  *http.Client

	mu   sync.Mutex
	dims int
}

// New creates an Ollama embedder. It does not contact the server; the first
// Embed or Dimensions call does.
func New(cfg Config) *Embedder {
	e := &Embedder{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		client:  cfg.Client,
		dims:    cfg.Dimensions,
	}
	if e.baseURL == "" {
		e.baseURL = DefaultBaseURL
	}
	if e.model == "" {
		e.model = DefaultModel
	}
	if e.client == nil {
		e.client = &http.Client{Timeout: 15 * time.Second}
	}
	return e
}

type embedRequest struct {
	Model   string       `json:"model"`
	Input   []string     `json:"input"`
	Options embedOptions `json:"options"`
}

type embedOptions struct {
	Truncate bool `json:"truncate,omitempty"`
}

type embedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

// Embed requests an embedding for a single text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embedRequest{
		Model:   e.model,
		Input:   []string{text},
		Options: embedOptions{Truncate: true},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("ollama embed: status %d", resp.StatusCode)
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("ollama embed: decode response: %w", err)
	}
	if len(out.Embeddings) == 0 || len(out.Embeddings[0]) == 0 {
		return nil, fmt.Errorf("ollama embed: empty embedding for model %q", e.model)
	}

	vec := make([]float32, len(out.Embeddings[0]))
	for i, v := range out.Embeddings[0] {
		vec[i] = float32(v)
	}

	e.mu.Lock()
	if e.dims == 0 {
		e.dims = len(vec)
	}
	e.mu.Unlock()
	return vec, nil
}

// Dimensions returns the embedding vector size, probing the model once if it
// was not configured.
func (e *Embedder) Dimensions() int {
	e.mu.Lock()
	dims := e.dims
	e.mu.Unlock()
	if dims > 0 {
		return dims
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	vec, err := e.Embed(ctx, "dimension probe")
	if err != nil {
		return 0
	}
	return len(vec)
}
