package agent

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// SearchProvider answers a web search query with free text for the model.
type SearchProvider interface {
	Search(ctx context.Context, query string) (string, error)
}

// DuckDuckGo queries the DuckDuckGo instant answer API. No key required;
// results are best-effort summaries, not full web pages.
type DuckDuckGo struct {
	// BaseURL overrides the API endpoint, mainly for tests.
	BaseURL string

	// Client overrides the HTTP client.
	Client *http.Client

	// MaxTopics caps the related-topic fallback. Zero means 3.
	MaxTopics int
}

const duckDuckGoURL = "https://api.duckduckgo.com/"

// Search runs the query and flattens the response into a short text block.
func (d *DuckDuckGo) Search(ctx context.Context, query string) (string, error) {
	base := d.BaseURL
	if base == "" {
		base = duckDuckGoURL
	}
	client := d.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	params := url.Values{
		"q":             {query},
		"format":        {"json"},
		"no_html":       {"1"},
		"skip_disambig": {"1"},
		"no_redirect":   {"1"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"?"+params.Encode(), nil)
	if err != nil {
		return "", err
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("web search: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("web search: status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("web search: read response: %w", err)
	}

	return d.flatten(body, query)
}

// flatten picks the best available answer field, falling back to related
// topics when the instant answer is empty.
func (d *DuckDuckGo) flatten(body []byte, query string) (string, error) {
	for _, field := range []string{"AbstractText", "Answer", "Definition"} {
		if text := strings.TrimSpace(gjson.GetBytes(body, field).String()); text != "" {
			return text, nil
		}
	}

	maxTopics := d.MaxTopics
	if maxTopics == 0 {
		maxTopics = 3
	}
	var lines []string
	gjson.GetBytes(body, "RelatedTopics").ForEach(func(_, topic gjson.Result) bool {
		if text := strings.TrimSpace(topic.Get("Text").String()); text != "" {
			lines = append(lines, "- "+text)
		}
		return len(lines) < maxTopics
	})
	if len(lines) == 0 {
		return "", fmt.Errorf("web search: no results for %q", query)
	}
	return strings.Join(lines, "\n"), nil
}
