package isolate

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/tyemirov/dagbuild/internal/task"
)

const panicErrorMessageTemplateConstant = "build panicked: %v\n%s"

// Build is the single call submitted to a worker.
type Build func(executionContext context.Context, parameters task.Parameters) (task.Report, error)

// Worker executes exactly one build inside a disposable execution context.
// Submit blocks until the build returns a result or fails; no timeout or
// cancellation applies. Release tears the context down after the single use,
// win or lose, so no state survives into the next task's build.
type Worker interface {
	Submit(executionContext context.Context, build Build, parameters task.Parameters) (task.Report, error)
	Release()
}

// Factory produces a fresh worker for a single isolated build. Workers are
// never reused across tasks.
type Factory func() Worker

// ShouldIsolate reports whether a task's build must run inside a disposable
// worker: isolation is enabled for the run and the task's logic lives in
// memory. Delegated tasks already run outside the calling process.
func ShouldIsolate(isolationEnabled bool, source task.SourceKind) bool {
	return isolationEnabled && source == task.SourceCallable
}

// PanicError carries a panic raised inside an isolated worker together with
// the stack trace captured at the panic site.
type PanicError struct {
	Value any
	Stack string
}

// Error renders the panic value and its full stack trace.
func (panicError PanicError) Error() string {
	return fmt.Sprintf(panicErrorMessageTemplateConstant, panicError.Value, panicError.Stack)
}

type buildOutcome struct {
	report task.Report
	err    error
}

type goroutineWorker struct {
	outcomeChannel chan buildOutcome
}

// NewGoroutineWorker returns a worker backed by a dedicated one-shot
// goroutine. When the worker is released every reference retained by the
// build's in-memory objects is dropped with it.
func NewGoroutineWorker() Worker {
	return &goroutineWorker{outcomeChannel: make(chan buildOutcome, 1)}
}

// Submit runs the build on the worker goroutine and blocks for its outcome.
// A panic inside the build surfaces as a PanicError with equivalent trace
// information to an in-process failure.
func (worker *goroutineWorker) Submit(executionContext context.Context, build Build, parameters task.Parameters) (task.Report, error) {
	go func() {
		defer func() {
			if recovered := recover(); recovered != nil {
				worker.outcomeChannel <- buildOutcome{err: PanicError{Value: recovered, Stack: string(debug.Stack())}}
			}
		}()
		report, buildError := build(executionContext, parameters)
		worker.outcomeChannel <- buildOutcome{report: report, err: buildError}
	}()

	outcome := <-worker.outcomeChannel
	return outcome.report, outcome.err
}

// Release discards the worker. The goroutine has already exited by the time
// Submit returns, so releasing only drops the remaining references.
func (worker *goroutineWorker) Release() {
	worker.outcomeChannel = nil
}
