package agent_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ratatoskr-ai/ratatoskr-go/agent"
)

func searchServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		_, _ = w.Write([]byte(body))
	}))
}

func TestDuckDuckGoAbstract(t *testing.T) {
	srv := searchServer(t, `{"AbstractText":"Go is a programming language.","RelatedTopics":[]}`)
	defer srv.Close()

	d := &agent.DuckDuckGo{BaseURL: srv.URL}
	got, err := d.Search(context.Background(), "golang")
	require.NoError(t, err)
	assert.Equal(t, "Go is a programming language.", got)
}

func TestDuckDuckGoAnswerFallback(t *testing.T) {
	srv := searchServer(t, `{"AbstractText":"","Answer":"4","RelatedTopics":[]}`)
	defer srv.Close()

	d := &agent.DuckDuckGo{BaseURL: srv.URL}
	got, err := d.Search(context.Background(), "2+2")
	require.NoError(t, err)
	assert.Equal(t, "4", got)
}

func TestDuckDuckGoRelatedTopicsFallback(t *testing.T) {
	srv := searchServer(t, `{
		"AbstractText": "",
		"RelatedTopics": [
			{"Text": "first topic"},
			{"Text": "second topic"},
			{"Text": "third topic"},
			{"Text": "fourth topic"}
		]
	}`)
	defer srv.Close()

	d := &agent.DuckDuckGo{BaseURL: srv.URL}
	got, err := d.Search(context.Background(), "obscure thing")
	require.NoError(t, err)
	assert.Equal(t, "- first topic\n- second topic\n- third topic", got)
}

func TestDuckDuckGoNoResults(t *testing.T) {
	srv := searchServer(t, `{"AbstractText":"","RelatedTopics":[]}`)
	defer srv.Close()

	d := &agent.DuckDuckGo{BaseURL: srv.URL}
	_, err := d.Search(context.Background(), "nothing at all")
	assert.Error(t, err)
}

func TestDuckDuckGoServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	d := &agent.DuckDuckGo{BaseURL: srv.URL}
	_, err := d.Search(context.Background(), "query")
	assert.Error(t, err)
}
