package task

import (
	"context"
	"errors"
	"strings"
	"time"
)

// BuildFunc is the in-memory build logic of a callable task.
type BuildFunc func(executionContext context.Context, parameters Parameters) (any, error)

// CallableTask runs build logic held as a Go function in the current process
// or, when isolation applies, inside a disposable worker.
type CallableTask struct {
	lifecycle
	build BuildFunc
}

// NewCallableTask constructs a callable task in the waiting state.
func NewCallableTask(name string, build BuildFunc) (*CallableTask, error) {
	trimmedName := strings.TrimSpace(name)
	if len(trimmedName) == 0 {
		return nil, errors.New(taskNameMissingMessageConstant)
	}
	if build == nil {
		return nil, errors.New(buildLogicMissingMessageConstant)
	}
	return &CallableTask{
		lifecycle: lifecycle{taskName: trimmedName, status: StatusWaiting},
		build:     build,
	}, nil
}

// Name returns the task identity, unique within its graph.
func (callableTask *CallableTask) Name() string {
	return callableTask.taskName
}

// Source reports that the build logic lives in memory.
func (callableTask *CallableTask) Source() SourceKind {
	return SourceCallable
}

// Build invokes the wrapped function and wraps its payload in a report.
func (callableTask *CallableTask) Build(executionContext context.Context, parameters Parameters) (Report, error) {
	startTime := time.Now()
	payload, buildError := callableTask.build(executionContext, parameters)
	if buildError != nil {
		return Report{}, buildError
	}
	return Report{
		TaskName: callableTask.taskName,
		Elapsed:  time.Since(startTime),
		Payload:  payload,
	}, nil
}
