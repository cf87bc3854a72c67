package run

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tyemirov/dagbuild/internal/execshell"
	"github.com/tyemirov/dagbuild/internal/pipeline"
	"github.com/tyemirov/dagbuild/internal/task"
	"github.com/tyemirov/dagbuild/internal/utils"
	"github.com/tyemirov/dagbuild/pkg/serial"
)

const (
	commandUseConstant              = "run <pipeline>"
	commandShortDescriptionConstant = "Run a pipeline definition file"
	commandLongDescriptionConstant  = "run executes the tasks defined in a YAML pipeline one at a time in dependency order, forwarding --param values to every task."
	commandExampleConstant          = "dagbuild run ./pipeline.yaml --show-progress\n  dagbuild run ./pipeline.yaml --param environment=staging"

	showProgressFlagNameConstant        = "show-progress"
	showProgressFlagDescriptionConstant = "Print a progress line before each task builds"
	parameterFlagNameConstant           = "param"
	parameterFlagDescriptionConstant    = "Set a build parameter (key=value). Repeatable."
	isolateFlagNameConstant             = "isolate"
	isolateFlagDescriptionConstant      = "Override the configured isolation of callable task builds"

	pipelinePathRequiredMessageConstant  = "pipeline definition path required"
	parameterFormatErrorTemplateConstant = "invalid parameter %q; expected key=value"
	runSummaryTemplateConstant           = "Built %d task(s) for pipeline %q\n"
)

// ExecutorConfiguration captures the persisted executor settings.
type ExecutorConfiguration struct {
	LoggingDirectory string `mapstructure:"logging_directory"`
	LoggingLevel     string `mapstructure:"logging_level"`
	IsolateBuilds    bool   `mapstructure:"isolate_builds"`
}

// CommandBuilder assembles the run command.
type CommandBuilder struct {
	LoggerProvider        func() *zap.Logger
	ConfigurationProvider func() ExecutorConfiguration
	ExecutorFactory       serial.Factory
}

// Build constructs the run command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:           commandUseConstant,
		Short:         commandShortDescriptionConstant,
		Long:          commandLongDescriptionConstant,
		Example:       commandExampleConstant,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          builder.run,
	}

	command.Flags().Bool(showProgressFlagNameConstant, false, showProgressFlagDescriptionConstant)
	command.Flags().StringArray(parameterFlagNameConstant, nil, parameterFlagDescriptionConstant)
	command.Flags().Bool(isolateFlagNameConstant, false, isolateFlagDescriptionConstant)

	return command, nil
}

func (builder *CommandBuilder) run(command *cobra.Command, arguments []string) error {
	pipelinePath := strings.TrimSpace(arguments[0])
	if len(pipelinePath) == 0 {
		return errors.New(pipelinePathRequiredMessageConstant)
	}

	showProgress, _ := command.Flags().GetBool(showProgressFlagNameConstant)
	parameterValues, _ := command.Flags().GetStringArray(parameterFlagNameConstant)

	parameters, parameterError := parseParameters(parameterValues)
	if parameterError != nil {
		return parameterError
	}

	logger := builder.resolveLogger()
	configuration := builder.resolveConfiguration()

	isolateBuilds := configuration.IsolateBuilds
	if command.Flags().Changed(isolateFlagNameConstant) {
		isolateBuilds, _ = command.Flags().GetBool(isolateFlagNameConstant)
	}

	loggingLevel, levelError := resolveLoggingLevel(configuration.LoggingLevel)
	if levelError != nil {
		return levelError
	}

	configurationData, loadError := pipeline.LoadConfiguration(pipelinePath)
	if loadError != nil {
		return loadError
	}

	shellExecutor, shellError := execshell.NewShellExecutor(logger, execshell.NewOSCommandRunner())
	if shellError != nil {
		return shellError
	}

	graph, graphError := pipeline.BuildGraph(command.Context(), configurationData, shellExecutor)
	if graphError != nil {
		return graphError
	}

	runner := serial.Resolve(builder.ExecutorFactory,
		serial.Options{
			LoggingDirectory: configuration.LoggingDirectory,
			LoggingLevel:     loggingLevel,
			IsolateBuilds:    isolateBuilds,
		},
		serial.Dependencies{
			Logger:   logger,
			Progress: command.OutOrStdout(),
		},
	)

	reports, executionError := runner.Execute(command.Context(), graph, showProgress, parameters)
	if executionError != nil {
		return executionError
	}

	fmt.Fprintf(command.OutOrStdout(), runSummaryTemplateConstant, len(reports), graph.Name())
	return nil
}

func (builder *CommandBuilder) resolveLogger() *zap.Logger {
	if builder.LoggerProvider == nil {
		return zap.NewNop()
	}
	logger := builder.LoggerProvider()
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

func (builder *CommandBuilder) resolveConfiguration() ExecutorConfiguration {
	if builder.ConfigurationProvider == nil {
		return ExecutorConfiguration{}
	}
	return builder.ConfigurationProvider()
}

func resolveLoggingLevel(configuredLevel string) (zapcore.Level, error) {
	trimmedLevel := strings.TrimSpace(configuredLevel)
	if len(trimmedLevel) == 0 {
		return zapcore.InfoLevel, nil
	}
	return utils.ZapLevel(utils.LogLevel(trimmedLevel))
}

func parseParameters(parameterValues []string) (task.Parameters, error) {
	if len(parameterValues) == 0 {
		return task.Parameters{}, nil
	}

	parameters := make(task.Parameters, len(parameterValues))
	for _, parameterValue := range parameterValues {
		key, value, separatorFound := strings.Cut(parameterValue, "=")
		trimmedKey := strings.TrimSpace(key)
		if !separatorFound || len(trimmedKey) == 0 {
			return nil, fmt.Errorf(parameterFormatErrorTemplateConstant, parameterValue)
		}
		parameters[trimmedKey] = value
	}
	return parameters, nil
}
