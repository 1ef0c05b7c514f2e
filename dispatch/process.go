package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"

	log "github.com/sirupsen/logrus"

	"github.com/ratatoskr-ai/ratatoskr-go/core"
)

// workerRequest is the single JSON document the parent writes to the child's
// stdin.
type workerRequest struct {
	Input   string      `json:"input"`
	History []core.Turn `json:"history,omitempty"`
}

// workerResponse is the single JSON document the child writes to stdout.
type workerResponse struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

// ProcWorker runs each pipeline invocation in a fresh child process,
// speaking one JSON request/response pair over stdin/stdout. The child is
// expected to call ServeWorker with its own pipeline, so the Pipeline passed
// to Run is ignored.
//
// Process isolation means a crashing model runtime takes down the child, not
// the host.
type ProcWorker struct {
	// Command is the child argv. Empty means re-exec the current binary
	// with -pipeline-worker.
	Command []string
}

// Run spawns the child, feeds it the request, and maps every failure mode
// onto Result.Err.
func (w *ProcWorker) Run(ctx context.Context, _ Pipeline, input string, history []core.Turn) Result {
	argv := w.Command
	if len(argv) == 0 {
		argv = []string{os.Args[0], "-pipeline-worker"}
	}

	reqBody, err := json.Marshal(workerRequest{Input: input, History: history})
	if err != nil {
		return Result{Err: fmt.Errorf("encode worker request: %w", err)}
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdin = bytes.NewReader(append(reqBody, '\n'))
	cmd.Stderr = os.Stderr

	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	log.WithField("cmd", argv[0]).Debug("starting pipeline worker process")
	if err := cmd.Run(); err != nil {
		return Result{Err: fmt.Errorf("pipeline worker process: %w", err)}
	}

	var resp workerResponse
	if err := json.Unmarshal(bytes.TrimSpace(stdout.Bytes()), &resp); err != nil {
		return Result{Err: fmt.Errorf("decode worker response: %w", err)}
	}
	if resp.Error != "" {
		return Result{Err: errors.New(resp.Error)}
	}
	return Result{Text: resp.Text}
}

// ServeWorker is the child-process side of ProcWorker: it reads one request
// from in, runs the pipeline, and writes one response to out. Pipeline
// errors are reported inside the response, not as a ServeWorker error, so
// the parent always gets a decodable document.
func ServeWorker(ctx context.Context, p Pipeline, in io.Reader, out io.Writer) error {
	var req workerRequest
	if err := json.NewDecoder(in).Decode(&req); err != nil {
		return fmt.Errorf("decode worker request: %w", err)
	}

	var resp workerResponse
	text, err := runRecovering(ctx, p, req.Input, req.History)
	if err != nil {
		resp.Error = err.Error()
	} else {
		resp.Text = text
	}

	if err := json.NewEncoder(out).Encode(resp); err != nil {
		return fmt.Errorf("encode worker response: %w", err)
	}
	return nil
}

func runRecovering(ctx context.Context, p Pipeline, input string, history []core.Turn) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pipeline panic: %v", r)
		}
	}()
	return p.Run(ctx, input, history)
}
