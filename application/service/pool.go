package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/helixml/linefit/application/handler"
	"github.com/helixml/linefit/domain/task"
)

// ErrNoHandler indicates no handler is registered for the operation.
var ErrNoHandler = errors.New("no handler registered")

// JobObserver records finished jobs.
type JobObserver interface {
	ObserveJob(operation string, duration time.Duration, err error)
}

// Registry maps task operations to their handlers.
type Registry struct {
	handlers map[task.Operation]handler.Handler
	mu       sync.RWMutex
}

// NewRegistry creates a new handler registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[task.Operation]handler.Handler),
	}
}

// Register adds a handler for a task operation.
// Subsequent registrations for the same operation will overwrite the previous handler.
func (r *Registry) Register(operation task.Operation, h handler.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[operation] = h
}

// Handler returns the handler for a task operation.
// Returns ErrNoHandler if no handler is registered.
func (r *Registry) Handler(operation task.Operation) (handler.Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.handlers[operation]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoHandler, operation)
	}
	return h, nil
}

// Pool runs tasks concurrently on a bounded number of workers. A failing
// task never stops the others.
type Pool struct {
	registry *Registry
	workers  int
	observer JobObserver
	logger   *slog.Logger
}

// NewPool creates a pool with the given number of workers; zero or less
// means one per CPU.
func NewPool(registry *Registry, workers int, logger *slog.Logger) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Pool{
		registry: registry,
		workers:  workers,
		logger:   logger,
	}
}

// WithObserver reports every finished task to o.
func (p *Pool) WithObserver(o JobObserver) *Pool {
	p.observer = o
	return p
}

// Workers returns the pool size.
func (p *Pool) Workers() int { return p.workers }

// Run processes every task and records its outcome on board. It returns
// only when all started tasks have finished. Tasks that have not begun
// executing when ctx is cancelled are marked skipped and ctx's error is
// returned.
func (p *Pool) Run(ctx context.Context, tasks []task.Task, board *Board) error {
	var g errgroup.Group
	g.SetLimit(p.workers)

	for i, t := range tasks {
		if ctx.Err() != nil {
			for _, rest := range tasks[i:] {
				p.tracker(board, rest).skip("cancelled")
			}
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				p.tracker(board, t).skip("cancelled")
				return nil
			}
			p.process(ctx, t, board)
			return nil
		})
	}

	_ = g.Wait()
	return ctx.Err()
}

func (p *Pool) process(ctx context.Context, t task.Task, board *Board) {
	start := time.Now()
	job := jobName(t)
	tracker := p.tracker(board, t)

	err := p.execute(ctx, t)
	if p.observer != nil {
		p.observer.ObserveJob(t.Operation().String(), time.Since(start), err)
	}
	if err != nil {
		p.logger.Error("job failed",
			slog.String("job", job),
			slog.String("operation", t.Operation().String()),
			slog.String("error", err.Error()),
		)
		tracker.Fail(ctx, err.Error())
		return
	}
	tracker.Complete(ctx)
}

func (p *Pool) execute(ctx context.Context, t task.Task) (err error) {
	h, err := p.registry.Handler(t.Operation())
	if err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return h.Execute(ctx, t.Payload())
}

func (p *Pool) tracker(board *Board, t task.Task) *boardTracker {
	return board.track(t.Operation(), jobName(t))
}

func jobName(t task.Task) string {
	if job, ok := t.Payload()[task.KeyJob].(string); ok && job != "" {
		return job
	}
	return t.DedupKey()
}
