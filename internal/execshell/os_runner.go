package execshell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
)

const environmentEntryTemplateConstant = "%s=%s"

// OSCommandRunner executes shell commands on the host via os/exec.
type OSCommandRunner struct{}

// NewOSCommandRunner constructs a runner backed by the operating system.
func NewOSCommandRunner() OSCommandRunner {
	return OSCommandRunner{}
}

// Run executes the command and captures its observable results.
func (runner OSCommandRunner) Run(executionContext context.Context, command ShellCommand) (ExecutionResult, error) {
	execCommand := exec.CommandContext(executionContext, string(command.Name), command.Details.Arguments...)
	execCommand.Dir = command.Details.WorkingDirectory
	execCommand.Env = mergedEnvironment(command.Details.EnvironmentVariables)

	if len(command.Details.StandardInput) > 0 {
		execCommand.Stdin = bytes.NewReader(command.Details.StandardInput)
	}

	var standardOutput bytes.Buffer
	var standardError bytes.Buffer
	execCommand.Stdout = &standardOutput
	execCommand.Stderr = &standardError

	runError := execCommand.Run()
	executionResult := ExecutionResult{
		StandardOutput: standardOutput.String(),
		StandardError:  standardError.String(),
	}

	if runError != nil {
		var exitError *exec.ExitError
		if errors.As(runError, &exitError) {
			executionResult.ExitCode = exitError.ExitCode()
			return executionResult, nil
		}
		return executionResult, runError
	}

	return executionResult, nil
}

func mergedEnvironment(overrides map[string]string) []string {
	environment := os.Environ()
	if len(overrides) == 0 {
		return environment
	}

	keys := make([]string, 0, len(overrides))
	for key := range overrides {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		environment = append(environment, fmt.Sprintf(environmentEntryTemplateConstant, key, overrides[key]))
	}
	return environment
}
