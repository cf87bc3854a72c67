package task

import (
	"context"
	"time"
)

// SourceKind tags where a task's build logic executes.
type SourceKind int

const (
	// SourceCallable marks build logic held as an in-memory Go function.
	SourceCallable SourceKind = iota
	// SourceCommand marks build logic delegated to an external command that
	// already runs outside the calling process.
	SourceCommand
)

const (
	sourceCallableNameConstant       = "callable"
	sourceCommandNameConstant        = "command"
	sourceUnknownNameConstant        = "unknown"
	taskNameMissingMessageConstant   = "task name not provided"
	buildLogicMissingMessageConstant = "task build logic not provided"
)

// String renders the source kind name.
func (kind SourceKind) String() string {
	switch kind {
	case SourceCallable:
		return sourceCallableNameConstant
	case SourceCommand:
		return sourceCommandNameConstant
	default:
		return sourceUnknownNameConstant
	}
}

// Parameters carries build-time arguments forwarded identically to every task.
type Parameters map[string]any

// Report is the opaque artifact of a successful build. The execution loop
// collects reports without inspecting their payloads.
type Report struct {
	TaskName string
	Elapsed  time.Duration
	Payload  any
}

// Handle exposes the executor-facing surface of a build task. The execution
// loop only reads and writes the execution status and invokes Build.
type Handle interface {
	Name() string
	ExecStatus() Status
	SetExecStatus(next Status) error
	Source() SourceKind
	Build(executionContext context.Context, parameters Parameters) (Report, error)
}

// lifecycle tracks the mutable execution status shared by the concrete tasks.
type lifecycle struct {
	taskName string
	status   Status
}

func (state *lifecycle) ExecStatus() Status {
	return state.status
}

func (state *lifecycle) SetExecStatus(next Status) error {
	if !TransitionAllowed(state.status, next) {
		return StatusTransitionError{TaskName: state.taskName, Current: state.status, Next: next}
	}
	state.status = next
	return nil
}
