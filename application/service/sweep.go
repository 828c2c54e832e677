// Package service provides the application services: single fits, the fit
// database and parallel parameter sweeps.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/helixml/linefit/application/handler"
	"github.com/helixml/linefit/application/handler/sweep"
	"github.com/helixml/linefit/domain/fit"
	"github.com/helixml/linefit/domain/service"
	"github.com/helixml/linefit/domain/task"
	"github.com/helixml/linefit/infrastructure/sink"
	"github.com/helixml/linefit/internal/config"
	"github.com/helixml/linefit/internal/log"
)

// DefaultSweepOutputDir is used when a sweep file names no output directory.
const DefaultSweepOutputDir = "sweep-out"

// OptimizerSource builds the optimizer a sweep or fit runs with.
type OptimizerSource interface {
	Optimizer(name string, plan config.SweepConfig) (service.Optimizer, error)
}

// SweepMetrics receives job and optimizer statistics.
type SweepMetrics interface {
	JobObserver
	sweep.Observer
	ResetBest()
}

// SweepReport summarizes one sweep run.
type SweepReport struct {
	RunID     string
	OutputDir string
	Total     int
	Succeeded int
	Failed    int
	// Merged maps "<entity>_<attr>" to the merged result file.
	Merged   map[string]string
	Statuses []task.Status
	Elapsed  time.Duration
}

// Sweep fans a parameter scan out into independent optimization jobs.
type Sweep struct {
	optimizers OptimizerSource
	workers    int
	seed       uint64
	store      service.ResultStore
	metrics    SweepMetrics
	reporter   StatusReporter
	logger     *slog.Logger

	mu      sync.RWMutex
	runID   string
	current *Board
}

// NewSweep creates a new Sweep service. workers of zero or less means one
// per CPU; seed is the base seed when a sweep file sets none.
func NewSweep(optimizers OptimizerSource, workers int, seed uint64, logger *slog.Logger) *Sweep {
	return &Sweep{
		optimizers: optimizers,
		workers:    workers,
		seed:       seed,
		logger:     logger,
	}
}

// WithStore stores every successful job record.
func (s *Sweep) WithStore(store service.ResultStore) *Sweep {
	s.store = store
	return s
}

// WithMetrics reports job and optimizer statistics.
func (s *Sweep) WithMetrics(m SweepMetrics) *Sweep {
	s.metrics = m
	return s
}

// WithReporter sends every job status change to r.
func (s *Sweep) WithReporter(r StatusReporter) *Sweep {
	s.reporter = r
	return s
}

// Progress returns the most recent run's ID and job counts.
func (s *Sweep) Progress() (runID string, total, completed, failed int) {
	s.mu.RLock()
	board := s.current
	runID = s.runID
	s.mu.RUnlock()

	if board == nil {
		return "", 0, 0, 0
	}
	total, completed, failed = board.Counts()
	return runID, total, completed, failed
}

// Statuses returns the most recent run's job statuses ordered by job name.
func (s *Sweep) Statuses() []task.Status {
	s.mu.RLock()
	board := s.current
	s.mu.RUnlock()

	if board == nil {
		return nil
	}
	return board.Statuses()
}

// Run validates plan against model, runs one job per scanned value and
// merges the per-job results. Job failures are counted, not returned; the
// error is non-nil only for configuration errors, cancellation, or when
// every job failed.
func (s *Sweep) Run(ctx context.Context, model *fit.Model, plan config.SweepConfig) (SweepReport, error) {
	if err := plan.Validate(model); err != nil {
		return SweepReport{}, err
	}

	op := task.SweepOperation(plan.OptimizerName())
	optimizer, err := s.optimizers.Optimizer(plan.OptimizerName(), plan)
	if err != nil {
		return SweepReport{}, fmt.Errorf("%w: %s: %w", ErrOptimizerUnavailable, plan.OptimizerName(), err)
	}

	outputDir := plan.OutputDir
	if outputDir == "" {
		outputDir = DefaultSweepOutputDir
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return SweepReport{}, fmt.Errorf("create output directory: %w", err)
	}

	runID := log.CorrelationID(ctx)
	if runID == "" {
		runID = uuid.NewString()
		ctx = log.WithCorrelationID(ctx, runID)
	}
	logger := s.logger.With(slog.String("run_id", runID))

	scans := plan.Scans()
	free := make([]fit.ParameterRef, len(scans))
	for i, scan := range scans {
		free[i] = scan.Ref
	}

	board := NewBoard()
	if s.reporter != nil {
		board.WithReporter(s.reporter)
	}
	prefixOf := make(map[string]string, plan.Jobs())
	tasks := make([]task.Task, 0, plan.Jobs())
	baseSeed := plan.BaseSeed(s.seed)
	for _, scan := range scans {
		for k := 0; k < scan.Range.Steps; k++ {
			index := len(tasks)
			payload := handler.NewJobPayload(index, scan.Ref, k, scan.Range.Value(k), baseSeed+uint64(index))
			t := task.NewTask(op, payload).WithID(int64(index))
			name := handler.JobName(scan.Ref, k)
			board.Add(op, name)
			prefixOf[name] = scan.Prefix()
			tasks = append(tasks, t)
		}
	}

	s.mu.Lock()
	s.runID = runID
	s.current = board
	s.mu.Unlock()

	if s.store != nil {
		// A reused correlation ID replaces the earlier run's records.
		if err := s.store.DeleteRun(ctx, runID); err != nil {
			logger.Warn("failed to clear previous sweep results", slog.String("error", err.Error()))
		}
	}

	run := sweep.Run{ID: runID, Model: model, Free: free, OutputDir: outputDir}
	job := sweep.NewJob(op, run, optimizer, board, logger)
	if s.store != nil {
		job = job.WithStore(s.store)
	}

	registry := NewRegistry()
	registry.Register(op, job)

	workers := s.workers
	if plan.Workers != nil {
		workers = *plan.Workers
	}
	pool := NewPool(registry, workers, logger)
	if s.metrics != nil {
		s.metrics.ResetBest()
		job.WithObserver(s.metrics)
		pool.WithObserver(s.metrics)
	}

	logger.Info("sweep started",
		slog.String("optimizer", plan.OptimizerName()),
		slog.Int("jobs", len(tasks)),
		slog.Int("workers", pool.Workers()),
		slog.String("output_dir", outputDir),
	)

	start := time.Now()
	runErr := pool.Run(ctx, tasks, board)

	report := SweepReport{
		RunID:     runID,
		OutputDir: outputDir,
		Total:     len(tasks),
		Merged:    make(map[string]string),
		Statuses:  board.Statuses(),
	}
	succeeded := make(map[string]bool)
	for _, st := range report.Statuses {
		switch st.State() {
		case task.ReportingStateCompleted:
			report.Succeeded++
			succeeded[prefixOf[st.ID()]] = true
		case task.ReportingStateFailed:
			report.Failed++
		}
	}

	var mergeErrs []error
	for _, scan := range scans {
		prefix := scan.Prefix()
		if !succeeded[prefix] {
			continue
		}
		path, rows, err := sink.Merge(outputDir, prefix)
		if err != nil {
			mergeErrs = append(mergeErrs, err)
			continue
		}
		report.Merged[prefix] = path
		logger.Debug("merged results", slog.String("prefix", prefix), slog.Int("rows", rows))
	}
	report.Elapsed = time.Since(start)

	logger.Info("sweep finished",
		slog.Int("succeeded", report.Succeeded),
		slog.Int("failed", report.Failed),
		slog.Duration("elapsed", report.Elapsed),
	)

	if runErr != nil {
		return report, runErr
	}
	if report.Total > 0 && report.Succeeded == 0 {
		return report, fmt.Errorf("%w: %d jobs", ErrAllJobsFailed, report.Total)
	}
	if len(mergeErrs) > 0 {
		return report, fmt.Errorf("merge results: %w", errors.Join(mergeErrs...))
	}
	return report, nil
}
