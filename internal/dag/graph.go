package dag

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tyemirov/dagbuild/internal/task"
)

const (
	graphNameMissingMessageConstant      = "graph name not provided"
	taskHandleMissingMessageConstant     = "task handle not provided"
	clientNameMissingMessageConstant     = "client name not provided"
	clientMissingMessageConstant         = "client not provided"
	duplicateTaskErrorTemplateConstant   = "task %q defined multiple times"
	duplicateClientErrorTemplateConstant = "client %q registered multiple times"
	unknownTaskErrorTemplateConstant     = "task %q not found"
)

// Client is a shared resource handle owned at the graph level.
type Client interface {
	Close() error
}

// Graph holds build tasks in dependency order along with shared resource
// clients. Task order is the order of insertion; the builder seals a
// dependency-respecting order before a graph reaches the executor.
type Graph struct {
	name       string
	tasks      []task.Handle
	taskIndex  map[string]int
	dependents map[string][]string
	clients    map[string]Client
}

// NewGraph constructs an empty graph with the provided name.
func NewGraph(name string) (*Graph, error) {
	trimmedName := strings.TrimSpace(name)
	if len(trimmedName) == 0 {
		return nil, errors.New(graphNameMissingMessageConstant)
	}
	return &Graph{
		name:       trimmedName,
		taskIndex:  map[string]int{},
		dependents: map[string][]string{},
		clients:    map[string]Client{},
	}, nil
}

// Name returns the graph identity used to key run-scoped logging.
func (graph *Graph) Name() string {
	return graph.name
}

// AddTask appends a task, preserving insertion order and enforcing unique names.
func (graph *Graph) AddTask(handle task.Handle) error {
	if handle == nil {
		return errors.New(taskHandleMissingMessageConstant)
	}
	taskName := handle.Name()
	if _, exists := graph.taskIndex[taskName]; exists {
		return fmt.Errorf(duplicateTaskErrorTemplateConstant, taskName)
	}
	graph.taskIndex[taskName] = len(graph.tasks)
	graph.tasks = append(graph.tasks, handle)
	return nil
}

// RegisterClient records a named resource client owned by the graph.
func (graph *Graph) RegisterClient(name string, client Client) error {
	trimmedName := strings.TrimSpace(name)
	if len(trimmedName) == 0 {
		return errors.New(clientNameMissingMessageConstant)
	}
	if client == nil {
		return errors.New(clientMissingMessageConstant)
	}
	if _, exists := graph.clients[trimmedName]; exists {
		return fmt.Errorf(duplicateClientErrorTemplateConstant, trimmedName)
	}
	graph.clients[trimmedName] = client
	return nil
}

// Clients returns the named resource clients owned by the graph.
func (graph *Graph) Clients() map[string]Client {
	copied := make(map[string]Client, len(graph.clients))
	for clientName, client := range graph.clients {
		copied[clientName] = client
	}
	return copied
}

// TasksInOrder returns the tasks in their sealed dependency order.
func (graph *Graph) TasksInOrder() []task.Handle {
	ordered := make([]task.Handle, len(graph.tasks))
	copy(ordered, graph.tasks)
	return ordered
}

// Task looks up a task handle by name.
func (graph *Graph) Task(name string) (task.Handle, bool) {
	position, exists := graph.taskIndex[name]
	if !exists {
		return nil, false
	}
	return graph.tasks[position], true
}

// Len reports the number of tasks in the graph.
func (graph *Graph) Len() int {
	return len(graph.tasks)
}

// MarkSkipped pre-marks a waiting task as skipped before the run starts.
func (graph *Graph) MarkSkipped(taskName string) error {
	handle, exists := graph.Task(taskName)
	if !exists {
		return fmt.Errorf(unknownTaskErrorTemplateConstant, taskName)
	}
	return handle.SetExecStatus(task.StatusSkipped)
}

// MarkDownstreamAborted pre-marks every transitive dependent of the named task
// as aborted. Dependents that already left the waiting state keep their status.
func (graph *Graph) MarkDownstreamAborted(taskName string) error {
	if _, exists := graph.taskIndex[taskName]; !exists {
		return fmt.Errorf(unknownTaskErrorTemplateConstant, taskName)
	}

	visited := map[string]struct{}{}
	pending := append([]string{}, graph.dependents[taskName]...)
	for len(pending) > 0 {
		currentName := pending[0]
		pending = pending[1:]
		if _, alreadyVisited := visited[currentName]; alreadyVisited {
			continue
		}
		visited[currentName] = struct{}{}

		handle, exists := graph.Task(currentName)
		if !exists {
			continue
		}
		if handle.ExecStatus() == task.StatusWaiting {
			if statusError := handle.SetExecStatus(task.StatusAborted); statusError != nil {
				return statusError
			}
		}
		pending = append(pending, graph.dependents[currentName]...)
	}
	return nil
}

func (graph *Graph) recordDependents(taskName string, dependencyNames []string) {
	for _, dependencyName := range dependencyNames {
		graph.dependents[dependencyName] = append(graph.dependents[dependencyName], taskName)
	}
}
