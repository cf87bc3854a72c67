package dag

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tyemirov/dagbuild/internal/task"
)

const (
	taskSpecMissingHandleMessageConstant        = "task specification is missing its handle"
	selfDependencyErrorTemplateConstant         = "task %q cannot depend on itself"
	unknownDependencyErrorTemplateConstant      = "task %q depends on unknown task %q"
	duplicateSpecificationErrorTemplateConstant = "task %q specified multiple times"
)

var errTaskCycleDetected = errors.New("graph tasks contain cycle")

// TaskSpec pairs a task handle with the names of the tasks it depends on.
type TaskSpec struct {
	Handle       task.Handle
	Dependencies []string
}

// Builder assembles a graph whose task order respects declared dependencies.
// The resulting order is deterministic: ready tasks are emitted in the order
// they were added.
type Builder struct {
	name  string
	specs []TaskSpec
}

// NewBuilder constructs a builder for a graph with the provided name.
func NewBuilder(name string) *Builder {
	return &Builder{name: name}
}

// Add appends a task specification with its dependency names.
func (builder *Builder) Add(handle task.Handle, dependencies ...string) *Builder {
	builder.specs = append(builder.specs, TaskSpec{Handle: handle, Dependencies: dependencies})
	return builder
}

// Build resolves a dependency-respecting task order and seals it into a graph.
func (builder *Builder) Build() (*Graph, error) {
	graph, graphError := NewGraph(builder.name)
	if graphError != nil {
		return nil, graphError
	}

	nameToSpec := make(map[string]TaskSpec, len(builder.specs))
	inDegree := make(map[string]int, len(builder.specs))
	adjacency := make(map[string][]string, len(builder.specs))
	orderedNames := make([]string, 0, len(builder.specs))

	for specIndex := range builder.specs {
		spec := builder.specs[specIndex]
		if spec.Handle == nil {
			return nil, errors.New(taskSpecMissingHandleMessageConstant)
		}

		taskName := strings.TrimSpace(spec.Handle.Name())
		if len(taskName) == 0 {
			return nil, errors.New(taskHandleMissingMessageConstant)
		}
		if _, exists := nameToSpec[taskName]; exists {
			return nil, fmt.Errorf(duplicateSpecificationErrorTemplateConstant, taskName)
		}

		sanitizedDependencies := make([]string, 0, len(spec.Dependencies))
		seenDependencies := make(map[string]struct{}, len(spec.Dependencies))
		for dependencyIndex := range spec.Dependencies {
			dependencyName := strings.TrimSpace(spec.Dependencies[dependencyIndex])
			if len(dependencyName) == 0 {
				continue
			}
			if dependencyName == taskName {
				return nil, fmt.Errorf(selfDependencyErrorTemplateConstant, taskName)
			}
			if _, alreadyIncluded := seenDependencies[dependencyName]; alreadyIncluded {
				continue
			}
			seenDependencies[dependencyName] = struct{}{}
			sanitizedDependencies = append(sanitizedDependencies, dependencyName)
		}
		spec.Dependencies = sanitizedDependencies

		nameToSpec[taskName] = spec
		inDegree[taskName] = 0
		orderedNames = append(orderedNames, taskName)
	}

	for _, taskName := range orderedNames {
		spec := nameToSpec[taskName]
		for _, dependencyName := range spec.Dependencies {
			if _, exists := nameToSpec[dependencyName]; !exists {
				return nil, fmt.Errorf(unknownDependencyErrorTemplateConstant, taskName, dependencyName)
			}
			inDegree[taskName]++
			adjacency[dependencyName] = append(adjacency[dependencyName], taskName)
		}
	}

	ready := make([]string, 0)
	for _, taskName := range orderedNames {
		if inDegree[taskName] == 0 {
			ready = append(ready, taskName)
		}
	}

	processed := 0
	for len(ready) > 0 {
		currentNames := ready
		ready = nil

		releasedSet := make(map[string]struct{})
		for _, currentName := range currentNames {
			spec := nameToSpec[currentName]
			if addError := graph.AddTask(spec.Handle); addError != nil {
				return nil, addError
			}
			graph.recordDependents(currentName, spec.Dependencies)
			processed++

			for _, dependentName := range adjacency[currentName] {
				inDegree[dependentName]--
				if inDegree[dependentName] == 0 {
					releasedSet[dependentName] = struct{}{}
				}
			}
		}

		for _, taskName := range orderedNames {
			if _, released := releasedSet[taskName]; released {
				ready = append(ready, taskName)
			}
		}
	}

	if processed != len(builder.specs) {
		return nil, errTaskCycleDetected
	}

	return graph, nil
}
