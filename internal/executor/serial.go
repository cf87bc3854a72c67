package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tyemirov/dagbuild/internal/dag"
	"github.com/tyemirov/dagbuild/internal/isolate"
	"github.com/tyemirov/dagbuild/internal/runlog"
	"github.com/tyemirov/dagbuild/internal/task"
)

const (
	graphNotConfiguredMessageConstant        = "serial executor requires a graph"
	logSinkCreationErrorTemplateConstant     = "unable to create run log sink: %w"
	logSinkAttachErrorTemplateConstant       = "unable to attach run log sink: %w"
	progressLineTemplateConstant             = "Building task %q (%d/%d)\n"
	taskExcludedMessageConstant              = "task excluded by entry status"
	taskBuildFailedMessageConstant           = "task build failed"
	taskBuiltMessageConstant                 = "task built"
	statusTransitionFailedMessageConstant    = "task status transition failed"
	erroredTransitionRejectedMessageConstant = "errored status transition rejected"
	logSinkDetachFailedMessageConstant       = "run log sink detach failed"
	clientCloseFailedMessageConstant         = "resource client close failed"
	clientsClosedMessageConstant             = "resource clients closed"
	taskFieldNameConstant                    = "task"
	statusFieldNameConstant                  = "status"
	dagFieldNameConstant                     = "dag"
	runIdentifierFieldNameConstant           = "run_id"
	elapsedFieldNameConstant                 = "elapsed"
	clientFieldNameConstant                  = "client"
	clientCountFieldNameConstant             = "client_count"
)

// ErrGraphNotConfigured indicates Execute was called without a graph.
var ErrGraphNotConfigured = errors.New(graphNotConfiguredMessageConstant)

// LogSink is the run-scoped logging attachment keyed by DAG name.
type LogSink interface {
	Attach() (*zap.Logger, error)
	Detach() error
}

// LogSinkFactory builds a run-scoped log sink for the named DAG.
type LogSinkFactory func(dagName string) (LogSink, error)

// Configuration captures the serializable settings of a serial executor.
// Injected collaborators live in Dependencies and are never part of it.
type Configuration struct {
	LoggingDirectory string
	LoggingLevel     zapcore.Level
	IsolateBuilds    bool
}

// Dependencies carries the injected collaborators of a serial executor.
type Dependencies struct {
	Logger         *zap.Logger
	Progress       io.Writer
	WorkerFactory  isolate.Factory
	LogSinkFactory LogSinkFactory
}

// Serial executes the tasks of a graph one at a time in the order supplied,
// attempting every non-terminal task regardless of earlier failures.
type Serial struct {
	configuration  Configuration
	logger         *zap.Logger
	progress       io.Writer
	workerFactory  isolate.Factory
	logSinkFactory LogSinkFactory
}

// NewSerial constructs a serial executor, filling in default collaborators.
func NewSerial(configuration Configuration, dependencies Dependencies) *Serial {
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	progress := dependencies.Progress
	if progress == nil {
		progress = io.Discard
	}
	workerFactory := dependencies.WorkerFactory
	if workerFactory == nil {
		workerFactory = isolate.NewGoroutineWorker
	}
	logSinkFactory := dependencies.LogSinkFactory
	if logSinkFactory == nil {
		logSinkFactory = func(dagName string) (LogSink, error) {
			return runlog.NewHandler(configuration.LoggingDirectory, dagName, configuration.LoggingLevel)
		}
	}
	return &Serial{
		configuration:  configuration,
		logger:         logger,
		progress:       progress,
		workerFactory:  workerFactory,
		logSinkFactory: logSinkFactory,
	}
}

// Execute runs every non-terminal task of the graph in order, forwarding the
// same parameters to each build. It returns the ordered reports of successful
// builds, or a BuildError aggregating every captured failure.
func (serial *Serial) Execute(executionContext context.Context, graph *dag.Graph, showProgress bool, parameters task.Parameters) ([]task.Report, error) {
	if graph == nil {
		return nil, ErrGraphNotConfigured
	}

	runIdentifier := uuid.NewString()
	runCore := serial.logger.Core()

	var sink LogSink
	if len(strings.TrimSpace(serial.configuration.LoggingDirectory)) > 0 {
		createdSink, sinkError := serial.logSinkFactory(graph.Name())
		if sinkError != nil {
			return nil, fmt.Errorf(logSinkCreationErrorTemplateConstant, sinkError)
		}
		sinkLogger, attachError := createdSink.Attach()
		if attachError != nil {
			return nil, fmt.Errorf(logSinkAttachErrorTemplateConstant, attachError)
		}
		sink = createdSink
		runCore = zapcore.NewTee(runCore, sinkLogger.Core())
	}

	runLogger := zap.New(runCore).With(
		zap.String(dagFieldNameConstant, graph.Name()),
		zap.String(runIdentifierFieldNameConstant, runIdentifier),
	)

	collector := &FailureCollector{}
	orderedTasks := graph.TasksInOrder()
	reports := make([]task.Report, 0, len(orderedTasks))

	for taskIndex, handle := range orderedTasks {
		entryStatus := handle.ExecStatus()
		if entryStatus.ExcludedFromRun() {
			runLogger.Debug(taskExcludedMessageConstant,
				zap.String(taskFieldNameConstant, handle.Name()),
				zap.String(statusFieldNameConstant, entryStatus.String()),
			)
			continue
		}

		if showProgress {
			fmt.Fprintf(serial.progress, progressLineTemplateConstant, handle.Name(), taskIndex+1, len(orderedTasks))
		}

		report, buildError := serial.runBuild(executionContext, handle, parameters)
		if buildError != nil {
			if statusError := handle.SetExecStatus(task.StatusErrored); statusError != nil {
				runLogger.Warn(erroredTransitionRejectedMessageConstant,
					zap.String(taskFieldNameConstant, handle.Name()),
					zap.Error(statusError),
				)
			}
			collector.Append(handle.Name(), buildError.Error())
			runLogger.Error(taskBuildFailedMessageConstant,
				zap.String(taskFieldNameConstant, handle.Name()),
				zap.Error(buildError),
			)
			continue
		}

		// A failing executed-transition is recorded without discarding the report.
		if statusError := handle.SetExecStatus(task.StatusExecuted); statusError != nil {
			collector.Append(handle.Name(), statusError.Error())
			runLogger.Warn(statusTransitionFailedMessageConstant,
				zap.String(taskFieldNameConstant, handle.Name()),
				zap.Error(statusError),
			)
		}
		reports = append(reports, report)
		runLogger.Info(taskBuiltMessageConstant,
			zap.String(taskFieldNameConstant, handle.Name()),
			zap.Duration(elapsedFieldNameConstant, report.Elapsed),
		)
	}

	// A failing run returns before the sink detach and client close below.
	if !collector.Empty() {
		return nil, &BuildError{DAGName: graph.Name(), Records: collector.Records()}
	}

	if sink != nil {
		if detachError := sink.Detach(); detachError != nil {
			serial.logger.Warn(logSinkDetachFailedMessageConstant,
				zap.String(dagFieldNameConstant, graph.Name()),
				zap.Error(detachError),
			)
		}
	}

	// Isolated builds discard their resource state with the worker, so shared
	// clients are only closed when every build ran in this process.
	if !serial.configuration.IsolateBuilds {
		serial.closeClients(graph)
	}

	return reports, nil
}

func (serial *Serial) runBuild(executionContext context.Context, handle task.Handle, parameters task.Parameters) (task.Report, error) {
	if isolate.ShouldIsolate(serial.configuration.IsolateBuilds, handle.Source()) {
		worker := serial.workerFactory()
		defer worker.Release()
		return worker.Submit(executionContext, handle.Build, parameters)
	}
	return handle.Build(executionContext, parameters)
}

func (serial *Serial) closeClients(graph *dag.Graph) {
	clients := graph.Clients()
	for clientName, client := range clients {
		if closeError := client.Close(); closeError != nil {
			serial.logger.Warn(clientCloseFailedMessageConstant,
				zap.String(clientFieldNameConstant, clientName),
				zap.Error(closeError),
			)
		}
	}
	if len(clients) > 0 {
		serial.logger.Debug(clientsClosedMessageConstant,
			zap.String(dagFieldNameConstant, graph.Name()),
			zap.Int(clientCountFieldNameConstant, len(clients)),
		)
	}
}
