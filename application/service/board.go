package service

import (
	"context"
	"sort"
	"sync"

	"github.com/helixml/linefit/application/handler"
	"github.com/helixml/linefit/domain/task"
)

// StatusReporter receives job status changes from a Board.
type StatusReporter interface {
	OnChange(ctx context.Context, status task.Status) error
}

// Board tracks the status of every job in one sweep run.
type Board struct {
	mu       sync.RWMutex
	statuses map[string]task.Status
	reporter StatusReporter
}

// NewBoard creates an empty status board.
func NewBoard() *Board {
	return &Board{statuses: make(map[string]task.Status)}
}

// WithReporter sends every status update to r.
func (b *Board) WithReporter(r StatusReporter) *Board {
	b.reporter = r
	return b
}

// Add registers a job in the started state.
func (b *Board) Add(operation task.Operation, job string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.statuses[job] = task.NewStatus(operation, job)
}

// ForJob returns a tracker that updates the job's status.
func (b *Board) ForJob(operation task.Operation, job string) handler.Tracker {
	return b.track(operation, job)
}

func (b *Board) track(operation task.Operation, job string) *boardTracker {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.statuses[job]; !ok {
		b.statuses[job] = task.NewStatus(operation, job)
	}
	return &boardTracker{board: b, job: job}
}

// Statuses returns every job status ordered by job name.
func (b *Board) Statuses() []task.Status {
	b.mu.RLock()
	defer b.mu.RUnlock()

	result := make([]task.Status, 0, len(b.statuses))
	for _, s := range b.statuses {
		result = append(result, s)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID() < result[j].ID() })
	return result
}

// Counts returns the number of jobs, completed jobs and failed jobs.
func (b *Board) Counts() (total, completed, failed int) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, s := range b.statuses {
		switch s.State() {
		case task.ReportingStateCompleted:
			completed++
		case task.ReportingStateFailed:
			failed++
		}
	}
	return len(b.statuses), completed, failed
}

func (b *Board) update(ctx context.Context, job string, fn func(task.Status) task.Status) {
	b.mu.Lock()
	s, ok := b.statuses[job]
	if ok {
		s = fn(s)
		b.statuses[job] = s
	}
	reporter := b.reporter
	b.mu.Unlock()

	if !ok || reporter == nil {
		return
	}
	// Reporting is best effort.
	_ = reporter.OnChange(ctx, s)
}

type boardTracker struct {
	board *Board
	job   string
}

func (t *boardTracker) SetTotal(ctx context.Context, total int) {
	t.board.update(ctx, t.job, func(s task.Status) task.Status { return s.SetTotal(total) })
}

func (t *boardTracker) SetCurrent(ctx context.Context, current int, message string) {
	t.board.update(ctx, t.job, func(s task.Status) task.Status { return s.SetCurrent(current, message) })
}

func (t *boardTracker) Fail(ctx context.Context, message string) {
	t.board.update(ctx, t.job, func(s task.Status) task.Status { return s.Fail(message) })
}

func (t *boardTracker) Complete(ctx context.Context) {
	t.board.update(ctx, t.job, func(s task.Status) task.Status { return s.Complete() })
}

func (t *boardTracker) skip(message string) {
	t.board.update(context.Background(), t.job, func(s task.Status) task.Status { return s.Skip(message) })
}
