package task

import "fmt"

const (
	statusWaitingNameConstant  = "waiting"
	statusSkippedNameConstant  = "skipped"
	statusAbortedNameConstant  = "aborted"
	statusExecutedNameConstant = "executed"
	statusErroredNameConstant  = "errored"
	statusUnknownNameConstant  = "unknown"

	statusTransitionErrorTemplateConstant = "task %s cannot transition from %s to %s"
)

// Status describes a task's lifecycle state within a single run.
type Status int

// Lifecycle states recognized by the execution loop.
const (
	StatusWaiting Status = iota
	StatusSkipped
	StatusAborted
	StatusExecuted
	StatusErrored
)

// String renders the status name used in logs and error messages.
func (status Status) String() string {
	switch status {
	case StatusWaiting:
		return statusWaitingNameConstant
	case StatusSkipped:
		return statusSkippedNameConstant
	case StatusAborted:
		return statusAbortedNameConstant
	case StatusExecuted:
		return statusExecutedNameConstant
	case StatusErrored:
		return statusErroredNameConstant
	default:
		return statusUnknownNameConstant
	}
}

// ExcludedFromRun reports whether the status removes the task from the build loop entirely.
func (status Status) ExcludedFromRun() bool {
	return status == StatusSkipped || status == StatusAborted
}

// TransitionAllowed reports whether a status change honors the monotonic lifecycle:
// only a waiting task may move to another state, and no state may revert to waiting.
func TransitionAllowed(current Status, next Status) bool {
	return current == StatusWaiting && next != StatusWaiting
}

// StatusTransitionError reports a status change that violates the monotonic lifecycle.
type StatusTransitionError struct {
	TaskName string
	Current  Status
	Next     Status
}

// Error describes the rejected transition.
func (transitionError StatusTransitionError) Error() string {
	return fmt.Sprintf(statusTransitionErrorTemplateConstant, transitionError.TaskName, transitionError.Current, transitionError.Next)
}
