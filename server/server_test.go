package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ratatoskr-ai/ratatoskr-go/core"
	"github.com/ratatoskr-ai/ratatoskr-go/dispatch"
	"github.com/ratatoskr-ai/ratatoskr-go/server"
)

type pipelineFunc func(ctx context.Context, input string, history []core.Turn) (string, error)

func (f pipelineFunc) Run(ctx context.Context, input string, history []core.Turn) (string, error) {
	return f(ctx, input, history)
}

type frame struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Error string `json:"error"`
}

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func sendInput(t *testing.T, conn *websocket.Conn, input string) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]string{"input": input}))
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func TestHealthEndpoint(t *testing.T) {
	s := server.New(dispatch.New(nil), pipelineFunc(nil))
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestChatRoundTrip(t *testing.T) {
	echo := pipelineFunc(func(_ context.Context, input string, _ []core.Turn) (string, error) {
		return "echo: " + input, nil
	})
	s := server.New(dispatch.New(nil), echo, server.WithPollInterval(5*time.Millisecond))
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	conn := dialWS(t, srv)
	sendInput(t, conn, "hello")

	f := readFrame(t, conn)
	assert.Equal(t, "reply", f.Type)
	assert.Equal(t, "echo: hello", f.Text)
}

func TestChatCarriesHistory(t *testing.T) {
	var gotHistory []core.Turn
	p := pipelineFunc(func(_ context.Context, input string, history []core.Turn) (string, error) {
		gotHistory = history
		return "reply to " + input, nil
	})
	s := server.New(dispatch.New(nil), p, server.WithPollInterval(5*time.Millisecond))
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	conn := dialWS(t, srv)
	sendInput(t, conn, "first")
	_ = readFrame(t, conn)
	sendInput(t, conn, "second")
	_ = readFrame(t, conn)

	require.Len(t, gotHistory, 2)
	assert.Equal(t, core.RoleUser, gotHistory[0].Role)
	assert.Equal(t, "first", gotHistory[0].Content)
	assert.Equal(t, core.RoleAssistant, gotHistory[1].Role)
	assert.Equal(t, "reply to first", gotHistory[1].Content)
}

func TestPipelineErrorBecomesErrorFrame(t *testing.T) {
	p := pipelineFunc(func(context.Context, string, []core.Turn) (string, error) {
		return "", context.DeadlineExceeded
	})
	s := server.New(dispatch.New(nil), p, server.WithPollInterval(5*time.Millisecond))
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	conn := dialWS(t, srv)
	sendInput(t, conn, "boom")

	f := readFrame(t, conn)
	assert.Equal(t, "error", f.Type)
	assert.NotEmpty(t, f.Error)
}

func TestBusyDispatcherRejectsSecondConnection(t *testing.T) {
	release := make(chan struct{})
	slow := pipelineFunc(func(context.Context, string, []core.Turn) (string, error) {
		<-release
		return "done", nil
	})
	s := server.New(dispatch.New(nil), slow, server.WithPollInterval(5*time.Millisecond))
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	first := dialWS(t, srv)
	sendInput(t, first, "long task")
	time.Sleep(50 * time.Millisecond)

	second := dialWS(t, srv)
	sendInput(t, second, "quick question")
	f := readFrame(t, second)
	assert.Equal(t, "error", f.Type)
	assert.Contains(t, f.Error, "busy")

	close(release)
	f = readFrame(t, first)
	assert.Equal(t, "reply", f.Type)
	assert.Equal(t, "done", f.Text)
}
