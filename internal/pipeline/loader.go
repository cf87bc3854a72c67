package pipeline

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tyemirov/dagbuild/internal/clients"
	"github.com/tyemirov/dagbuild/internal/dag"
	"github.com/tyemirov/dagbuild/internal/execshell"
	"github.com/tyemirov/dagbuild/internal/task"
)

const (
	configurationReadErrorTemplateConstant  = "unable to read pipeline configuration %s: %w"
	configurationParseErrorTemplateConstant = "unable to parse pipeline configuration %s: %w"
	postgresClientNameConstant              = "postgres"
	objectStoreClientNameConstant           = "object_store"
)

// LoadConfiguration reads and validates a pipeline definition from disk.
func LoadConfiguration(path string) (Configuration, error) {
	contents, readError := os.ReadFile(path)
	if readError != nil {
		return Configuration{}, fmt.Errorf(configurationReadErrorTemplateConstant, path, readError)
	}

	var configuration Configuration
	if parseError := yaml.Unmarshal(contents, &configuration); parseError != nil {
		return Configuration{}, fmt.Errorf(configurationParseErrorTemplateConstant, path, parseError)
	}

	if validationError := configuration.Validate(); validationError != nil {
		return Configuration{}, validationError
	}
	return configuration, nil
}

// BuildGraph assembles a sealed graph of delegated tasks from a validated
// configuration. Tasks pre-marked skip enter the run in the skipped state and
// their transitive dependents are aborted before the executor sees the graph.
func BuildGraph(executionContext context.Context, configuration Configuration, commandExecutor task.CommandExecutor) (*dag.Graph, error) {
	builder := dag.NewBuilder(configuration.Name)

	for taskIndex := range configuration.Tasks {
		taskConfiguration := configuration.Tasks[taskIndex]
		command := execshell.ShellCommand{
			Name: execshell.CommandName(taskConfiguration.Command),
			Details: execshell.CommandDetails{
				Arguments:        taskConfiguration.Arguments,
				WorkingDirectory: taskConfiguration.WorkingDirectory,
			},
		}
		handle, taskError := task.NewCommandTask(taskConfiguration.Name, command, commandExecutor)
		if taskError != nil {
			return nil, taskError
		}
		builder.Add(handle, taskConfiguration.DependsOn...)
	}

	graph, buildError := builder.Build()
	if buildError != nil {
		return nil, buildError
	}

	for taskIndex := range configuration.Tasks {
		taskConfiguration := configuration.Tasks[taskIndex]
		if !taskConfiguration.Skip {
			continue
		}
		if markError := graph.MarkSkipped(taskConfiguration.Name); markError != nil {
			return nil, markError
		}
		if abortError := graph.MarkDownstreamAborted(taskConfiguration.Name); abortError != nil {
			return nil, abortError
		}
	}

	if registerError := registerClients(executionContext, graph, configuration.Clients); registerError != nil {
		return nil, registerError
	}

	return graph, nil
}

func registerClients(executionContext context.Context, graph *dag.Graph, configuration ClientsConfiguration) error {
	if configuration.Postgres != nil {
		postgresClient, clientError := clients.NewPostgresClient(executionContext, *configuration.Postgres)
		if clientError != nil {
			return clientError
		}
		if registerError := graph.RegisterClient(postgresClientNameConstant, postgresClient); registerError != nil {
			return registerError
		}
	}

	if configuration.ObjectStore != nil {
		objectStoreClient, clientError := clients.NewObjectStoreClient(*configuration.ObjectStore)
		if clientError != nil {
			return clientError
		}
		if registerError := graph.RegisterClient(objectStoreClientNameConstant, objectStoreClient); registerError != nil {
			return registerError
		}
	}

	return nil
}
