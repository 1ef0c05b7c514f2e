// Package dispatch runs reasoning pipeline invocations off the caller's
// goroutine and hands back one-shot task handles.
//
// The dispatcher is single-flight: one task at a time, and a finished task
// must be consumed through Poll or Wait before the next Dispatch is
// accepted. This matches a conversational host that processes one user turn
// at a time and keeps its event loop responsive by polling.
package dispatch

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/ratatoskr-ai/ratatoskr-go/core"
)

// ErrBusy reports a Dispatch while the previous task is still running or its
// result has not been consumed yet.
var ErrBusy = errors.New("dispatch: a task is already in flight")

// Result is the terminal outcome of a pipeline invocation. Pipeline errors
// and worker panics both land in Err; a Result is always delivered.
type Result struct {
	Text string
	Err  error
}

// Pipeline is one reasoning run: user input plus conversation history in,
// assistant reply out.
type Pipeline interface {
	Run(ctx context.Context, input string, history []core.Turn) (string, error)
}

// Task is the handle for one dispatched invocation. Its result is delivered
// exactly once; after a successful Poll or Wait the handle is spent and
// further polls report not-ready.
type Task struct {
	id     string
	result chan Result
}

// ID returns the task's unique id.
func (t *Task) ID() string { return t.id }

// Dispatcher runs pipeline invocations through a Worker, one at a time.
type Dispatcher struct {
	worker Worker

	mu     sync.Mutex
	active *Task
}

// New creates a dispatcher. A nil worker defaults to the in-process
// goroutine worker.
func New(worker Worker) *Dispatcher {
	if worker == nil {
		worker = &GoWorker{}
	}
	return &Dispatcher{worker: worker}
}

// Dispatch starts one pipeline invocation and returns its handle, or ErrBusy
// while an earlier task is unconsumed.
func (d *Dispatcher) Dispatch(ctx context.Context, p Pipeline, input string, history []core.Turn) (*Task, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.active != nil {
		return nil, ErrBusy
	}

	task := &Task{id: uuid.NewString(), result: make(chan Result, 1)}
	d.active = task
	log.WithField("task", task.id).Debug("dispatching pipeline task")

	go func() {
		task.result <- d.worker.Run(ctx, p, input, history)
	}()
	return task, nil
}

// Poll checks the task without blocking. The first call after completion
// consumes the result, re-arms the dispatcher, and returns ok=true; all
// other calls return ok=false.
func (d *Dispatcher) Poll(task *Task) (Result, bool) {
	select {
	case res := <-task.result:
		d.release(task)
		return res, true
	default:
		return Result{}, false
	}
}

// Wait blocks until the task finishes or ctx is done. Like Poll, a delivered
// result consumes the handle and re-arms the dispatcher.
func (d *Dispatcher) Wait(ctx context.Context, task *Task) (Result, error) {
	select {
	case res := <-task.result:
		d.release(task)
		return res, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Busy reports whether a task is in flight or unconsumed.
func (d *Dispatcher) Busy() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active != nil
}

func (d *Dispatcher) release(task *Task) {
	d.mu.Lock()
	if d.active == task {
		d.active = nil
	}
	d.mu.Unlock()
	log.WithField("task", task.id).Debug("pipeline task consumed")
}
