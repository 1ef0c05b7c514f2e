// Package server exposes the assistant over a websocket chat endpoint.
//
// Each connection holds its own conversation history. User turns are handed
// to the shared dispatcher; the connection handler polls for the result so a
// slow pipeline never blocks other connections' error reporting. With the
// single-flight dispatcher, a turn arriving while another is in flight gets
// a busy error frame instead of queueing.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/ratatoskr-ai/ratatoskr-go/core"
	"github.com/ratatoskr-ai/ratatoskr-go/dispatch"
)

// DefaultPollInterval is how often a connection checks its task for
// completion.
const DefaultPollInterval = 100 * time.Millisecond

// Server hosts the websocket chat surface.
type Server struct {
	dispatcher *dispatch.Dispatcher
	pipeline   dispatch.Pipeline
	poll       time.Duration
	upgrader   websocket.Upgrader
}

// Option configures the server.
type Option func(*Server)

// WithPollInterval overrides the task poll interval.
func WithPollInterval(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.poll = d
		}
	}
}

// New creates a server dispatching turns from websocket clients into the
// pipeline.
func New(dispatcher *dispatch.Dispatcher, pipeline dispatch.Pipeline, opts ...Option) *Server {
	s := &Server{
		dispatcher: dispatcher,
		pipeline:   pipeline,
		poll:       DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the HTTP routes: /ws for chat, /health for liveness.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/health", handleHealth)
	return mux
}

// ListenAndServe blocks serving the handler on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler()}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Infof("server: listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

type clientMessage struct {
	Input string `json:"input"`
}

type serverMessage struct {
	Type  string `json:"type"`
	Text  string `json:"text,omitempty"`
	Error string `json:"error,omitempty"`
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("server: websocket upgrade failed: %v", err)
		return
	}
	defer func() { _ = conn.Close() }()

	var history []core.Turn
	for {
		var msg clientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warnf("server: connection closed unexpectedly: %v", err)
			}
			return
		}

		reply := s.processTurn(r.Context(), msg.Input, history)
		if reply.Type == "reply" {
			history = append(history, core.UserTurn(msg.Input), core.AssistantTurn(reply.Text))
		}
		if err := conn.WriteJSON(reply); err != nil {
			log.Warnf("server: write failed: %v", err)
			return
		}
	}
}

// processTurn dispatches one user turn and polls until the result arrives or
// the connection's context ends.
func (s *Server) processTurn(ctx context.Context, input string, history []core.Turn) serverMessage {
	task, err := s.dispatcher.Dispatch(ctx, s.pipeline, input, history)
	if err != nil {
		if err == dispatch.ErrBusy {
			return serverMessage{Type: "error", Error: "assistant is busy, try again shortly"}
		}
		return serverMessage{Type: "error", Error: err.Error()}
	}

	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()
	for {
		if res, ok := s.dispatcher.Poll(task); ok {
			if res.Err != nil {
				log.Warnf("server: pipeline failed: %v", res.Err)
				return serverMessage{Type: "error", Error: res.Err.Error()}
			}
			return serverMessage{Type: "reply", Text: res.Text}
		}
		select {
		case <-ctx.Done():
			return serverMessage{Type: "error", Error: "request canceled"}
		case <-ticker.C:
		}
	}
}
