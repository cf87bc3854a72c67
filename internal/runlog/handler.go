package runlog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	directoryMissingMessageConstant   = "run log directory not provided"
	dagNameMissingMessageConstant     = "run log dag name not provided"
	handlerNotAttachedMessageConstant = "run log handler not attached"
	logFileNameTemplateConstant       = "%s.log"
	logDirectoryPermissionConstant    = 0o755
	logFilePermissionConstant         = 0o644
)

// Handler attaches a run-scoped file sink keyed by DAG name. One handler
// brackets one run: Attach before the first task, Detach after a clean run.
type Handler struct {
	directory string
	dagName   string
	level     zapcore.Level
	file      *os.File
	logger    *zap.Logger
}

// NewHandler constructs a handler writing to <directory>/<dag-name>.log.
func NewHandler(directory string, dagName string, level zapcore.Level) (*Handler, error) {
	trimmedDirectory := strings.TrimSpace(directory)
	if len(trimmedDirectory) == 0 {
		return nil, errors.New(directoryMissingMessageConstant)
	}
	trimmedDAGName := strings.TrimSpace(dagName)
	if len(trimmedDAGName) == 0 {
		return nil, errors.New(dagNameMissingMessageConstant)
	}
	return &Handler{directory: trimmedDirectory, dagName: trimmedDAGName, level: level}, nil
}

// Attach opens the log file and returns the run-scoped logger.
func (handler *Handler) Attach() (*zap.Logger, error) {
	if directoryError := os.MkdirAll(handler.directory, logDirectoryPermissionConstant); directoryError != nil {
		return nil, directoryError
	}

	filePath := filepath.Join(handler.directory, fmt.Sprintf(logFileNameTemplateConstant, handler.dagName))
	file, openError := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermissionConstant)
	if openError != nil {
		return nil, openError
	}

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		zapcore.AddSync(file),
		handler.level,
	)

	handler.file = file
	handler.logger = zap.New(core)
	return handler.logger, nil
}

// Logger returns the attached run-scoped logger, or a no-op logger before Attach.
func (handler *Handler) Logger() *zap.Logger {
	if handler.logger == nil {
		return zap.NewNop()
	}
	return handler.logger
}

// Detach flushes and closes the sink. Detaching an unattached handler fails.
func (handler *Handler) Detach() error {
	if handler.file == nil {
		return errors.New(handlerNotAttachedMessageConstant)
	}
	syncError := handler.logger.Sync()
	closeError := handler.file.Close()
	handler.file = nil
	handler.logger = nil
	if closeError != nil {
		return closeError
	}
	return syncError
}
