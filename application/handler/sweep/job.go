// Package sweep provides the handler that runs one sweep job.
package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/helixml/linefit/application/handler"
	"github.com/helixml/linefit/domain/fit"
	"github.com/helixml/linefit/domain/service"
	"github.com/helixml/linefit/domain/task"
	"github.com/helixml/linefit/infrastructure/sink"
)

// progressEvery throttles tracker updates from the optimizer callback.
const progressEvery = 100

// Observer receives optimizer statistics.
type Observer interface {
	AddIterations(n int)
	ObserveChiSquare(v float64)
}

// Run is the shared, read-only context of one sweep run.
type Run struct {
	ID        string
	Model     *fit.Model
	Free      []fit.ParameterRef
	OutputDir string
}

// Job handles the linefit.sweep.* task operations. It optimizes a copy of
// the run's model with one parameter locked at the job's value and writes a
// single-row result file.
type Job struct {
	operation      task.Operation
	run            Run
	optimizer      service.Optimizer
	store          service.ResultStore
	observer       Observer
	trackerFactory handler.TrackerFactory
	logger         *slog.Logger
}

// NewJob creates a new Job handler.
func NewJob(
	operation task.Operation,
	run Run,
	optimizer service.Optimizer,
	trackerFactory handler.TrackerFactory,
	logger *slog.Logger,
) *Job {
	return &Job{
		operation:      operation,
		run:            run,
		optimizer:      optimizer,
		trackerFactory: trackerFactory,
		logger:         logger,
	}
}

// WithStore also stores each result record.
func (h *Job) WithStore(store service.ResultStore) *Job {
	h.store = store
	return h
}

// WithObserver reports optimizer statistics to o.
func (h *Job) WithObserver(o Observer) *Job {
	h.observer = o
	return h
}

// Execute processes one sweep job.
func (h *Job) Execute(ctx context.Context, payload map[string]any) error {
	p, err := handler.ExtractJobPayload(payload)
	if err != nil {
		return err
	}

	tracker := h.trackerFactory.ForJob(h.operation, p.Job())

	model, err := Prepare(h.run.Model, h.run.Free, p.Ref(), p.Value())
	if err != nil {
		return err
	}

	start := time.Now()
	result, err := h.optimizer.Optimize(ctx, model,
		service.WithSeed(p.Seed()),
		service.WithProgress(func(iteration int, chiSquare, _ float64) {
			if iteration%progressEvery == 0 {
				tracker.SetCurrent(ctx, iteration, fmt.Sprintf("chi2 %.6g", chiSquare))
			}
		}),
	)
	if err != nil {
		return fmt.Errorf("optimize %s: %w", p.Job(), err)
	}

	record := service.NewRecord(result.Model).WithJob(h.run.ID, p.Job())
	path := filepath.Join(h.run.OutputDir, sink.JobFileName(p.Ref().Column(), p.Step()))
	if err := sink.WriteFile(path, record); err != nil {
		return fmt.Errorf("write %s: %w", p.Job(), err)
	}

	if h.store != nil {
		if err := h.store.Append(ctx, record); err != nil {
			h.logger.Warn("failed to store sweep result",
				slog.String("job", p.Job()),
				slog.String("error", err.Error()),
			)
		}
	}
	if h.observer != nil {
		h.observer.AddIterations(result.Iterations)
		h.observer.ObserveChiSquare(result.ChiSquare)
	}

	for _, d := range result.Diagnostics {
		h.logger.Warn("unphysical parameter",
			slog.String("job", p.Job()),
			slog.String("diagnostic", d.String()),
		)
	}
	h.logger.Info("job finished",
		slog.String("run_id", h.run.ID),
		slog.String("job", p.Job()),
		slog.Float64("chi2", result.ChiSquare),
		slog.Int("iterations", result.Iterations),
		slog.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// Prepare returns a copy of base with every free parameter unlocked and
// scanned locked at value.
func Prepare(base *fit.Model, free []fit.ParameterRef, scanned fit.ParameterRef, value float64) (*fit.Model, error) {
	m := base.Copy()
	for _, ref := range free {
		if err := m.SetLocked(ref, false); err != nil {
			return nil, err
		}
	}
	if err := m.SetParam(scanned, value); err != nil {
		return nil, err
	}
	if err := m.SetLocked(scanned, true); err != nil {
		return nil, err
	}
	return m, nil
}
