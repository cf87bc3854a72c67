package serial

import (
	"context"
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tyemirov/dagbuild/internal/dag"
	"github.com/tyemirov/dagbuild/internal/executor"
	"github.com/tyemirov/dagbuild/internal/isolate"
	"github.com/tyemirov/dagbuild/internal/task"
)

// Executor runs a build graph to completion.
type Executor interface {
	Execute(executionContext context.Context, graph *dag.Graph, showProgress bool, parameters task.Parameters) ([]task.Report, error)
}

// Options captures the serializable executor settings.
type Options struct {
	// LoggingDirectory enables the run-scoped log sink when set.
	LoggingDirectory string
	// LoggingLevel is the severity threshold of the run-scoped sink.
	LoggingLevel zapcore.Level
	// IsolateBuilds runs every callable task inside a disposable worker so
	// memory retained by one task's build is reclaimed before the next.
	IsolateBuilds bool
}

// Dependencies carries injected collaborators for executor construction.
type Dependencies struct {
	Logger        *zap.Logger
	Progress      io.Writer
	WorkerFactory isolate.Factory
}

// Factory constructs an Executor given options and dependencies.
type Factory func(Options, Dependencies) Executor

// Resolve returns either the provided factory result or the default serial
// executor.
func Resolve(factory Factory, options Options, dependencies Dependencies) Executor {
	if factory != nil {
		if resolved := factory(options, dependencies); resolved != nil {
			return resolved
		}
	}
	return executor.NewSerial(
		executor.Configuration{
			LoggingDirectory: options.LoggingDirectory,
			LoggingLevel:     options.LoggingLevel,
			IsolateBuilds:    options.IsolateBuilds,
		},
		executor.Dependencies{
			Logger:        dependencies.Logger,
			Progress:      dependencies.Progress,
			WorkerFactory: dependencies.WorkerFactory,
		},
	)
}
