package task

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tyemirov/dagbuild/internal/execshell"
)

const (
	commandExecutorMissingMessageConstant = "task command executor not provided"
	commandNameMissingMessageConstant     = "task command not provided"
	parameterVariablePrefixConstant       = "DAGBUILD_PARAM_"
	parameterValueTemplateConstant        = "%v"
)

// CommandExecutor runs delegated build commands.
type CommandExecutor interface {
	Execute(executionContext context.Context, command execshell.ShellCommand) (execshell.ExecutionResult, error)
}

// CommandTask delegates its build to an external command. The command already
// runs outside the calling process, so isolation never applies to it.
type CommandTask struct {
	lifecycle
	command  execshell.ShellCommand
	executor CommandExecutor
}

// NewCommandTask constructs a delegated task in the waiting state.
func NewCommandTask(name string, command execshell.ShellCommand, executor CommandExecutor) (*CommandTask, error) {
	trimmedName := strings.TrimSpace(name)
	if len(trimmedName) == 0 {
		return nil, errors.New(taskNameMissingMessageConstant)
	}
	if len(strings.TrimSpace(string(command.Name))) == 0 {
		return nil, errors.New(commandNameMissingMessageConstant)
	}
	if executor == nil {
		return nil, errors.New(commandExecutorMissingMessageConstant)
	}
	return &CommandTask{
		lifecycle: lifecycle{taskName: trimmedName, status: StatusWaiting},
		command:   command,
		executor:  executor,
	}, nil
}

// Name returns the task identity, unique within its graph.
func (commandTask *CommandTask) Name() string {
	return commandTask.taskName
}

// Source reports that the build logic is externally delegated.
func (commandTask *CommandTask) Source() SourceKind {
	return SourceCommand
}

// Build runs the delegated command with run parameters exported as environment
// variables and wraps the execution result in a report.
func (commandTask *CommandTask) Build(executionContext context.Context, parameters Parameters) (Report, error) {
	startTime := time.Now()

	command := commandTask.command
	command.Details.EnvironmentVariables = mergedParameterEnvironment(command.Details.EnvironmentVariables, parameters)

	executionResult, executionError := commandTask.executor.Execute(executionContext, command)
	if executionError != nil {
		return Report{}, executionError
	}

	return Report{
		TaskName: commandTask.taskName,
		Elapsed:  time.Since(startTime),
		Payload:  executionResult,
	}, nil
}

func mergedParameterEnvironment(environment map[string]string, parameters Parameters) map[string]string {
	if len(parameters) == 0 {
		return environment
	}

	merged := make(map[string]string, len(environment)+len(parameters))
	for key, value := range environment {
		merged[key] = value
	}
	for key, value := range parameters {
		variableName := parameterVariablePrefixConstant + strings.ToUpper(strings.TrimSpace(key))
		merged[variableName] = fmt.Sprintf(parameterValueTemplateConstant, value)
	}
	return merged
}
