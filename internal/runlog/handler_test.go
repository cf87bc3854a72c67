package runlog_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/tyemirov/dagbuild/internal/runlog"
)

const (
	testDAGNameConstant    = "nightly-build"
	testLogMessageConstant = "task built"
)

func TestNewHandlerValidatesInputs(testInstance *testing.T) {
	testCases := []struct {
		name      string
		directory string
		dagName   string
	}{
		{name: "missing_directory", directory: "  ", dagName: testDAGNameConstant},
		{name: "missing_dag_name", directory: testInstance.TempDir(), dagName: ""},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subtestInstance *testing.T) {
			_, creationError := runlog.NewHandler(testCase.directory, testCase.dagName, zapcore.InfoLevel)
			require.Error(subtestInstance, creationError)
		})
	}
}

func TestHandlerWritesRunLogFile(testInstance *testing.T) {
	logDirectory := testInstance.TempDir()

	handler, creationError := runlog.NewHandler(logDirectory, testDAGNameConstant, zapcore.InfoLevel)
	require.NoError(testInstance, creationError)

	logger, attachError := handler.Attach()
	require.NoError(testInstance, attachError)
	logger.Info(testLogMessageConstant)

	require.NoError(testInstance, handler.Detach())

	contents, readError := os.ReadFile(filepath.Join(logDirectory, testDAGNameConstant+".log"))
	require.NoError(testInstance, readError)
	require.Contains(testInstance, string(contents), testLogMessageConstant)
}

func TestHandlerCreatesMissingDirectory(testInstance *testing.T) {
	logDirectory := filepath.Join(testInstance.TempDir(), "nested", "logs")

	handler, creationError := runlog.NewHandler(logDirectory, testDAGNameConstant, zapcore.InfoLevel)
	require.NoError(testInstance, creationError)

	_, attachError := handler.Attach()
	require.NoError(testInstance, attachError)
	require.NoError(testInstance, handler.Detach())

	require.DirExists(testInstance, logDirectory)
}

func TestHandlerLoggerBeforeAttachIsSafe(testInstance *testing.T) {
	handler, creationError := runlog.NewHandler(testInstance.TempDir(), testDAGNameConstant, zapcore.InfoLevel)
	require.NoError(testInstance, creationError)

	require.NotNil(testInstance, handler.Logger())
}

func TestDetachWithoutAttachFails(testInstance *testing.T) {
	handler, creationError := runlog.NewHandler(testInstance.TempDir(), testDAGNameConstant, zapcore.InfoLevel)
	require.NoError(testInstance, creationError)

	require.Error(testInstance, handler.Detach())
}
