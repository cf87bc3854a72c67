package dag_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tyemirov/dagbuild/internal/dag"
	"github.com/tyemirov/dagbuild/internal/task"
)

const (
	testGraphNameConstant      = "nightly-build"
	testFirstTaskNameConstant  = "extract"
	testSecondTaskNameConstant = "transform"
	testThirdTaskNameConstant  = "load"
	testClientNameConstant     = "warehouse"
)

type countingClient struct {
	closeCount int
}

func (client *countingClient) Close() error {
	client.closeCount++
	return nil
}

func newWaitingTask(testInstance *testing.T, name string) *task.CallableTask {
	testInstance.Helper()
	handle, creationError := task.NewCallableTask(name, func(context.Context, task.Parameters) (any, error) {
		return nil, nil
	})
	require.NoError(testInstance, creationError)
	return handle
}

func TestNewGraphRequiresName(testInstance *testing.T) {
	_, graphError := dag.NewGraph("  ")
	require.Error(testInstance, graphError)
}

func TestGraphPreservesInsertionOrder(testInstance *testing.T) {
	graph, graphError := dag.NewGraph(testGraphNameConstant)
	require.NoError(testInstance, graphError)

	taskNames := []string{testFirstTaskNameConstant, testSecondTaskNameConstant, testThirdTaskNameConstant}
	for _, taskName := range taskNames {
		require.NoError(testInstance, graph.AddTask(newWaitingTask(testInstance, taskName)))
	}

	orderedTasks := graph.TasksInOrder()
	require.Len(testInstance, orderedTasks, len(taskNames))
	for taskIndex, handle := range orderedTasks {
		require.Equal(testInstance, taskNames[taskIndex], handle.Name())
	}
}

func TestGraphRejectsDuplicateTaskNames(testInstance *testing.T) {
	graph, graphError := dag.NewGraph(testGraphNameConstant)
	require.NoError(testInstance, graphError)

	require.NoError(testInstance, graph.AddTask(newWaitingTask(testInstance, testFirstTaskNameConstant)))
	duplicateError := graph.AddTask(newWaitingTask(testInstance, testFirstTaskNameConstant))
	require.Error(testInstance, duplicateError)
	require.Equal(testInstance, 1, graph.Len())
}

func TestGraphClientRegistration(testInstance *testing.T) {
	graph, graphError := dag.NewGraph(testGraphNameConstant)
	require.NoError(testInstance, graphError)

	client := &countingClient{}
	require.NoError(testInstance, graph.RegisterClient(testClientNameConstant, client))
	require.Error(testInstance, graph.RegisterClient(testClientNameConstant, client))
	require.Error(testInstance, graph.RegisterClient(" ", client))
	require.Error(testInstance, graph.RegisterClient("other", nil))

	clients := graph.Clients()
	require.Len(testInstance, clients, 1)
	require.Same(testInstance, client, clients[testClientNameConstant].(*countingClient))
}

func TestGraphMarkSkipped(testInstance *testing.T) {
	graph, graphError := dag.NewGraph(testGraphNameConstant)
	require.NoError(testInstance, graphError)

	handle := newWaitingTask(testInstance, testFirstTaskNameConstant)
	require.NoError(testInstance, graph.AddTask(handle))

	require.NoError(testInstance, graph.MarkSkipped(testFirstTaskNameConstant))
	require.Equal(testInstance, task.StatusSkipped, handle.ExecStatus())

	require.Error(testInstance, graph.MarkSkipped("missing"))
}
