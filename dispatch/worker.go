package dispatch

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/ratatoskr-ai/ratatoskr-go/core"
)

// Worker executes one pipeline invocation to completion and reports the
// outcome as a Result. Implementations must never panic through Run; any
// failure mode becomes Result.Err.
type Worker interface {
	Run(ctx context.Context, p Pipeline, input string, history []core.Turn) Result
}

// GoWorker runs the pipeline on the dispatcher's goroutine with panic
// recovery. This is the default worker.
type GoWorker struct{}

// Run invokes the pipeline directly, converting panics into failed results.
func (*GoWorker) Run(ctx context.Context, p Pipeline, input string, history []core.Turn) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("dispatch: pipeline panic: %v", r)
			res = Result{Err: fmt.Errorf("pipeline panic: %v", r)}
		}
	}()

	text, err := p.Run(ctx, input, history)
	if err != nil {
		return Result{Err: err}
	}
	return Result{Text: text}
}
