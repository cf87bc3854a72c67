package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	runcmd "github.com/tyemirov/dagbuild/cmd/cli/run"
	"github.com/tyemirov/dagbuild/internal/utils"
)

const (
	applicationNameConstant             = "dagbuild"
	applicationShortDescriptionConstant = "Command-line interface for running dependency-ordered build pipelines"
	applicationLongDescriptionConstant  = "dagbuild executes the tasks of a build pipeline one at a time in dependency order, collecting every failure before reporting."

	configFileFlagNameConstant  = "config"
	configFileFlagUsageConstant = "Optional path to a configuration file (YAML)."
	logLevelFlagNameConstant    = "log-level"
	logLevelFlagUsageConstant   = "Override the configured log level."
	logFormatFlagNameConstant   = "log-format"
	logFormatFlagUsageConstant  = "Override the configured log format (structured or console)."

	environmentPrefixConstant          = "DAGBUILD"
	configurationNameConstant          = "config"
	configurationTypeConstant          = "yaml"
	userConfigurationDirectoryConstant = ".dagbuild"

	defaultLogLevelConstant  = string(utils.LogLevelInfo)
	defaultLogFormatConstant = string(utils.LogFormatStructured)

	configurationLoadErrorTemplateConstant   = "unable to load configuration: %w"
	configurationDecodeErrorTemplateConstant = "unable to decode configuration: %w"
	loggerCreationErrorTemplateConstant      = "unable to create logger: %w"

	versionCommandUseNameConstant          = "version"
	versionCommandShortDescriptionConstant = "Print the dagbuild version"
	versionOutputTemplateConstant          = "dagbuild version: %s\n"
	unknownVersionFallbackConstant         = "development"
)

// ApplicationConfiguration describes the persisted configuration for the CLI entrypoint.
type ApplicationConfiguration struct {
	Common   ApplicationCommonConfiguration `mapstructure:"common"`
	Executor runcmd.ExecutorConfiguration   `mapstructure:"executor"`
}

// ApplicationCommonConfiguration stores logging defaults shared across commands.
type ApplicationCommonConfiguration struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// Application wires configuration, logging, and subcommands together.
type Application struct {
	rootCommand           *cobra.Command
	loggerFactory         *utils.LoggerFactory
	logger                *zap.Logger
	consoleLogger         *zap.Logger
	configuration         ApplicationConfiguration
	configurationFilePath string
	logLevelFlagValue     string
	logFormatFlagValue    string
}

// NewApplication assembles a fully wired CLI application instance.
func NewApplication() *Application {
	application := &Application{
		loggerFactory: utils.NewLoggerFactory(),
		logger:        zap.NewNop(),
		consoleLogger: zap.NewNop(),
	}

	rootCommand := &cobra.Command{
		Use:           applicationNameConstant,
		Short:         applicationShortDescriptionConstant,
		Long:          applicationLongDescriptionConstant,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(command *cobra.Command, arguments []string) error {
			return application.initializeConfiguration()
		},
		RunE: func(command *cobra.Command, arguments []string) error {
			return command.Help()
		},
	}

	rootCommand.SetContext(context.Background())
	application.registerGlobalFlags(rootCommand.PersistentFlags())

	versionCommand := &cobra.Command{
		Use:           versionCommandUseNameConstant,
		Short:         versionCommandShortDescriptionConstant,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(command *cobra.Command, arguments []string) error {
			fmt.Fprintf(command.OutOrStdout(), versionOutputTemplateConstant, resolveVersion())
			return nil
		},
	}
	rootCommand.AddCommand(versionCommand)

	runBuilder := runcmd.CommandBuilder{
		LoggerProvider: func() *zap.Logger {
			return application.logger
		},
		ConfigurationProvider: func() runcmd.ExecutorConfiguration {
			return application.configuration.Executor
		},
	}
	runCommand, runBuildError := runBuilder.Build()
	if runBuildError == nil {
		rootCommand.AddCommand(runCommand)
	}

	application.rootCommand = rootCommand
	return application
}

// Execute runs the root command.
func (application *Application) Execute() error {
	return application.rootCommand.Execute()
}

// RootCommand exposes the assembled root command.
func (application *Application) RootCommand() *cobra.Command {
	return application.rootCommand
}

// Execute constructs and runs the application.
func Execute() error {
	return NewApplication().Execute()
}

func (application *Application) registerGlobalFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&application.configurationFilePath, configFileFlagNameConstant, "", configFileFlagUsageConstant)
	flagSet.StringVar(&application.logLevelFlagValue, logLevelFlagNameConstant, "", logLevelFlagUsageConstant)
	flagSet.StringVar(&application.logFormatFlagValue, logFormatFlagNameConstant, "", logFormatFlagUsageConstant)
}

func (application *Application) initializeConfiguration() error {
	loadedViper := viper.New()
	loadedViper.SetConfigName(configurationNameConstant)
	loadedViper.SetConfigType(configurationTypeConstant)
	for _, searchPath := range application.resolveConfigurationSearchPaths() {
		loadedViper.AddConfigPath(searchPath)
	}
	if len(strings.TrimSpace(application.configurationFilePath)) > 0 {
		loadedViper.SetConfigFile(application.configurationFilePath)
	}

	loadedViper.SetEnvPrefix(environmentPrefixConstant)
	loadedViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	loadedViper.AutomaticEnv()

	if readError := loadedViper.ReadInConfig(); readError != nil {
		var notFoundError viper.ConfigFileNotFoundError
		explicitPathProvided := len(strings.TrimSpace(application.configurationFilePath)) > 0
		if explicitPathProvided || !errorsAsConfigNotFound(readError, &notFoundError) {
			return fmt.Errorf(configurationLoadErrorTemplateConstant, readError)
		}
	}

	configuration, decodeError := DecodeConfiguration(loadedViper.AllSettings())
	if decodeError != nil {
		return decodeError
	}
	application.configuration = configuration

	resolvedLogLevel := firstNonEmpty(application.logLevelFlagValue, configuration.Common.LogLevel, defaultLogLevelConstant)
	resolvedLogFormat := firstNonEmpty(application.logFormatFlagValue, configuration.Common.LogFormat, defaultLogFormatConstant)

	loggerOutputs, loggerError := application.loggerFactory.CreateLoggerOutputs(
		utils.LogLevel(resolvedLogLevel),
		utils.LogFormat(resolvedLogFormat),
	)
	if loggerError != nil {
		return fmt.Errorf(loggerCreationErrorTemplateConstant, loggerError)
	}
	application.logger = loggerOutputs.DiagnosticLogger
	application.consoleLogger = loggerOutputs.ConsoleLogger

	return nil
}

// DecodeConfiguration maps loaded settings onto the typed configuration.
func DecodeConfiguration(settings map[string]any) (ApplicationConfiguration, error) {
	var configuration ApplicationConfiguration
	decoder, decoderError := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &configuration,
		WeaklyTypedInput: true,
	})
	if decoderError != nil {
		return ApplicationConfiguration{}, fmt.Errorf(configurationDecodeErrorTemplateConstant, decoderError)
	}
	if decodeError := decoder.Decode(settings); decodeError != nil {
		return ApplicationConfiguration{}, fmt.Errorf(configurationDecodeErrorTemplateConstant, decodeError)
	}
	return configuration, nil
}

func (application *Application) resolveConfigurationSearchPaths() []string {
	searchPaths := []string{"."}
	homeDirectory, homeError := os.UserHomeDir()
	if homeError == nil && len(strings.TrimSpace(homeDirectory)) > 0 {
		searchPaths = append(searchPaths, filepath.Join(homeDirectory, userConfigurationDirectoryConstant))
	}
	return searchPaths
}

func errorsAsConfigNotFound(candidate error, target *viper.ConfigFileNotFoundError) bool {
	typed, matches := candidate.(viper.ConfigFileNotFoundError)
	if matches {
		*target = typed
	}
	return matches
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if len(trimmed) > 0 {
			return trimmed
		}
	}
	return ""
}

func resolveVersion() string {
	buildInfo, available := debug.ReadBuildInfo()
	if !available {
		return unknownVersionFallbackConstant
	}
	version := strings.TrimSpace(buildInfo.Main.Version)
	if len(version) == 0 || version == "(devel)" {
		return unknownVersionFallbackConstant
	}
	return version
}
