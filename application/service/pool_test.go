package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixml/linefit/domain/task"
)

type funcHandler func(ctx context.Context, payload map[string]any) error

func (f funcHandler) Execute(ctx context.Context, payload map[string]any) error {
	return f(ctx, payload)
}

func namedTask(op task.Operation, job string) task.Task {
	return task.NewTask(op, map[string]any{task.KeyJob: job})
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	_, err := r.Handler(task.OperationSweepAnneal)
	require.ErrorIs(t, err, ErrNoHandler)

	r.Register(task.OperationSweepAnneal, funcHandler(func(context.Context, map[string]any) error { return nil }))

	h, err := r.Handler(task.OperationSweepAnneal)
	require.NoError(t, err)
	assert.NotNil(t, h)
}

func TestPool_Run(t *testing.T) {
	var ran atomic.Int32
	r := NewRegistry()
	r.Register(task.OperationSweepAnneal, funcHandler(func(_ context.Context, payload map[string]any) error {
		ran.Add(1)
		switch payload[task.KeyJob] {
		case "bad":
			return errors.New("boom")
		case "panic":
			panic("unexpected")
		}
		return nil
	}))

	tasks := []task.Task{
		namedTask(task.OperationSweepAnneal, "a"),
		namedTask(task.OperationSweepAnneal, "bad"),
		namedTask(task.OperationSweepAnneal, "panic"),
		namedTask(task.OperationSweepAnneal, "b"),
		namedTask(task.OperationSweepExternal, "orphan"),
	}
	board := NewBoard()
	metrics := &fakeMetrics{}
	pool := NewPool(r, 2, testLogger()).WithObserver(metrics)

	require.NoError(t, pool.Run(context.Background(), tasks, board))
	assert.Equal(t, int32(4), ran.Load())

	states := make(map[string]task.ReportingState)
	errs := make(map[string]string)
	for _, st := range board.Statuses() {
		states[st.ID()] = st.State()
		errs[st.ID()] = st.Error()
	}
	assert.Equal(t, task.ReportingStateCompleted, states["a"])
	assert.Equal(t, task.ReportingStateCompleted, states["b"])
	assert.Equal(t, task.ReportingStateFailed, states["bad"])
	assert.Equal(t, "boom", errs["bad"])
	assert.Equal(t, task.ReportingStateFailed, states["panic"])
	assert.Contains(t, errs["panic"], "handler panicked: unexpected")
	assert.Equal(t, task.ReportingStateFailed, states["orphan"])
	assert.Contains(t, errs["orphan"], ErrNoHandler.Error())

	total, completed, failed := board.Counts()
	assert.Equal(t, 5, total)
	assert.Equal(t, 2, completed)
	assert.Equal(t, 3, failed)
	assert.Equal(t, 5, metrics.jobs)
	assert.Equal(t, 3, metrics.failed)
}

func TestPool_RunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := NewRegistry()
	r.Register(task.OperationSweepAnneal, funcHandler(func(context.Context, map[string]any) error {
		cancel()
		return nil
	}))

	tasks := []task.Task{
		namedTask(task.OperationSweepAnneal, "first"),
		namedTask(task.OperationSweepAnneal, "second"),
	}
	board := NewBoard()
	for _, tk := range tasks {
		board.Add(tk.Operation(), jobName(tk))
	}

	// A single worker finishes "first" before "second" is dispatched.
	pool := NewPool(r, 1, testLogger())
	err := pool.Run(ctx, tasks, board)
	require.ErrorIs(t, err, context.Canceled)

	statuses := board.Statuses()
	require.Len(t, statuses, 2)
	assert.Equal(t, task.ReportingStateCompleted, statuses[0].State())
	assert.Equal(t, task.ReportingStateSkipped, statuses[1].State())
	assert.Equal(t, "cancelled", statuses[1].Message())
}

func TestNewPool_DefaultWorkers(t *testing.T) {
	assert.Positive(t, NewPool(NewRegistry(), 0, testLogger()).Workers())
	assert.Equal(t, 4, NewPool(NewRegistry(), 4, testLogger()).Workers())
}

func TestJobName(t *testing.T) {
	assert.Equal(t, "H_N_0", jobName(namedTask(task.OperationSweepAnneal, "H_N_0")))

	unnamed := task.NewTask(task.OperationSweepAnneal, nil)
	assert.Equal(t, unnamed.DedupKey(), jobName(unnamed))
}
