package cli_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tyemirov/dagbuild/cmd/cli"
)

func TestDecodeConfigurationMapsSettings(testInstance *testing.T) {
	settings := map[string]any{
		"common": map[string]any{
			"log_level":  "debug",
			"log_format": "console",
		},
		"executor": map[string]any{
			"logging_directory": "/var/log/dagbuild",
			"logging_level":     "warn",
			"isolate_builds":    true,
		},
	}

	configuration, decodeError := cli.DecodeConfiguration(settings)
	require.NoError(testInstance, decodeError)

	require.Equal(testInstance, "debug", configuration.Common.LogLevel)
	require.Equal(testInstance, "console", configuration.Common.LogFormat)
	require.Equal(testInstance, "/var/log/dagbuild", configuration.Executor.LoggingDirectory)
	require.Equal(testInstance, "warn", configuration.Executor.LoggingLevel)
	require.True(testInstance, configuration.Executor.IsolateBuilds)
}

func TestDecodeConfigurationToleratesWeaklyTypedValues(testInstance *testing.T) {
	settings := map[string]any{
		"executor": map[string]any{
			"isolate_builds": "true",
		},
	}

	configuration, decodeError := cli.DecodeConfiguration(settings)
	require.NoError(testInstance, decodeError)
	require.True(testInstance, configuration.Executor.IsolateBuilds)
}

func TestDecodeConfigurationEmptySettings(testInstance *testing.T) {
	configuration, decodeError := cli.DecodeConfiguration(map[string]any{})
	require.NoError(testInstance, decodeError)
	require.Empty(testInstance, configuration.Common.LogLevel)
	require.False(testInstance, configuration.Executor.IsolateBuilds)
}

func TestApplicationRegistersSubcommands(testInstance *testing.T) {
	application := cli.NewApplication()

	outputBuffer := &bytes.Buffer{}
	rootCommand := application.RootCommand()
	rootCommand.SetOut(outputBuffer)
	rootCommand.SetErr(outputBuffer)

	commandNames := make([]string, 0)
	for _, command := range rootCommand.Commands() {
		commandNames = append(commandNames, command.Name())
	}
	require.Contains(testInstance, commandNames, "version")
	require.Contains(testInstance, commandNames, "run")
}

func TestVersionCommandPrintsVersion(testInstance *testing.T) {
	application := cli.NewApplication()

	outputBuffer := &bytes.Buffer{}
	rootCommand := application.RootCommand()
	rootCommand.SetOut(outputBuffer)
	rootCommand.SetErr(outputBuffer)
	rootCommand.SetArgs([]string{"version"})

	require.NoError(testInstance, rootCommand.Execute())
	require.Contains(testInstance, outputBuffer.String(), "dagbuild version:")
}
