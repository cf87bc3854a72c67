package run_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tyemirov/dagbuild/cmd/cli/run"
	"github.com/tyemirov/dagbuild/internal/dag"
	"github.com/tyemirov/dagbuild/internal/task"
	"github.com/tyemirov/dagbuild/pkg/serial"
)

const (
	testPipelineDefinitionConstant = `name: nightly-build
tasks:
  - name: extract
    command: sh
    arguments: ["-c", "printf extracted"]
  - name: transform
    command: sh
    arguments: ["-c", "printf transformed"]
    depends_on: [extract]
`
	testFailingPipelineDefinitionConstant = `name: nightly-build
tasks:
  - name: extract
    command: sh
    arguments: ["-c", "exit 7"]
`
)

type recordingExecutor struct {
	graph        *dag.Graph
	showProgress bool
	parameters   task.Parameters
	options      serial.Options
}

func (executor *recordingExecutor) Execute(_ context.Context, graph *dag.Graph, showProgress bool, parameters task.Parameters) ([]task.Report, error) {
	executor.graph = graph
	executor.showProgress = showProgress
	executor.parameters = parameters
	return []task.Report{{TaskName: "extract"}}, nil
}

func writePipeline(testInstance *testing.T, contents string) string {
	testInstance.Helper()
	path := filepath.Join(testInstance.TempDir(), "pipeline.yaml")
	require.NoError(testInstance, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func buildCommand(testInstance *testing.T, builder run.CommandBuilder, arguments ...string) (*bytes.Buffer, func() error) {
	testInstance.Helper()
	command, buildError := builder.Build()
	require.NoError(testInstance, buildError)

	outputBuffer := &bytes.Buffer{}
	command.SetOut(outputBuffer)
	command.SetErr(outputBuffer)
	command.SetContext(context.Background())
	command.SetArgs(arguments)
	return outputBuffer, command.Execute
}

func TestRunCommandExecutesPipeline(testInstance *testing.T) {
	pipelinePath := writePipeline(testInstance, testPipelineDefinitionConstant)

	outputBuffer, execute := buildCommand(testInstance, run.CommandBuilder{}, pipelinePath, "--show-progress")
	require.NoError(testInstance, execute())

	output := outputBuffer.String()
	require.Contains(testInstance, output, "Building task \"extract\" (1/2)")
	require.Contains(testInstance, output, "Building task \"transform\" (2/2)")
	require.Contains(testInstance, output, "Built 2 task(s) for pipeline \"nightly-build\"")
}

func TestRunCommandReportsAggregatedFailure(testInstance *testing.T) {
	pipelinePath := writePipeline(testInstance, testFailingPipelineDefinitionConstant)

	_, execute := buildCommand(testInstance, run.CommandBuilder{}, pipelinePath)
	executionError := execute()
	require.Error(testInstance, executionError)
	require.Contains(testInstance, executionError.Error(), "DAG build failed")
	require.Contains(testInstance, executionError.Error(), "extract")
}

func TestRunCommandForwardsParameters(testInstance *testing.T) {
	pipelinePath := writePipeline(testInstance, testPipelineDefinitionConstant)
	executor := &recordingExecutor{}
	builder := run.CommandBuilder{
		ExecutorFactory: func(options serial.Options, _ serial.Dependencies) serial.Executor {
			executor.options = options
			return executor
		},
	}

	_, execute := buildCommand(testInstance, builder, pipelinePath, "--param", "environment=staging", "--param", "region=us-east-1")
	require.NoError(testInstance, execute())

	require.Equal(testInstance, task.Parameters{"environment": "staging", "region": "us-east-1"}, executor.parameters)
	require.False(testInstance, executor.showProgress)
	require.Equal(testInstance, "nightly-build", executor.graph.Name())
}

func TestRunCommandRejectsMalformedParameter(testInstance *testing.T) {
	pipelinePath := writePipeline(testInstance, testPipelineDefinitionConstant)

	_, execute := buildCommand(testInstance, run.CommandBuilder{}, pipelinePath, "--param", "environment")
	executionError := execute()
	require.Error(testInstance, executionError)
	require.Contains(testInstance, executionError.Error(), "expected key=value")
}

func TestRunCommandIsolateFlagOverridesConfiguration(testInstance *testing.T) {
	pipelinePath := writePipeline(testInstance, testPipelineDefinitionConstant)
	executor := &recordingExecutor{}
	builder := run.CommandBuilder{
		ConfigurationProvider: func() run.ExecutorConfiguration {
			return run.ExecutorConfiguration{IsolateBuilds: true}
		},
		ExecutorFactory: func(options serial.Options, _ serial.Dependencies) serial.Executor {
			executor.options = options
			return executor
		},
	}

	_, execute := buildCommand(testInstance, builder, pipelinePath, "--isolate=false")
	require.NoError(testInstance, execute())
	require.False(testInstance, executor.options.IsolateBuilds)
}

func TestRunCommandRejectsUnknownLoggingLevel(testInstance *testing.T) {
	pipelinePath := writePipeline(testInstance, testPipelineDefinitionConstant)
	builder := run.CommandBuilder{
		ConfigurationProvider: func() run.ExecutorConfiguration {
			return run.ExecutorConfiguration{LoggingLevel: "verbose"}
		},
	}

	_, execute := buildCommand(testInstance, builder, pipelinePath)
	require.Error(testInstance, execute())
}

func TestRunCommandRequiresPipelineArgument(testInstance *testing.T) {
	_, execute := buildCommand(testInstance, run.CommandBuilder{})
	require.Error(testInstance, execute())
}
