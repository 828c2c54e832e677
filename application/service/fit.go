package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/helixml/linefit/domain/fit"
	"github.com/helixml/linefit/domain/repository"
	"github.com/helixml/linefit/domain/service"
	"github.com/helixml/linefit/internal/config"
)

// Fits runs single optimizations and manages the fit database.
type Fits struct {
	optimizers OptimizerSource
	store      fit.Store
	logger     *slog.Logger
}

// NewFits creates a new Fits service.
func NewFits(optimizers OptimizerSource, logger *slog.Logger) *Fits {
	return &Fits{
		optimizers: optimizers,
		logger:     logger,
	}
}

// WithStore enables the fit database.
func (s *Fits) WithStore(store fit.Store) *Fits {
	s.store = store
	return s
}

// Fit optimizes m with the named optimizer. The input model is not modified.
func (s *Fits) Fit(ctx context.Context, m *fit.Model, optimizer string, opts ...service.OptimizeOption) (service.Result, error) {
	if optimizer == "" {
		optimizer = config.OptimizerAnneal
	}
	opt, err := s.optimizers.Optimizer(optimizer, config.SweepConfig{})
	if err != nil {
		return service.Result{}, fmt.Errorf("%w: %s: %w", ErrOptimizerUnavailable, optimizer, err)
	}

	start := time.Now()
	result, err := opt.Optimize(ctx, m, opts...)
	if err != nil {
		return service.Result{}, fmt.Errorf("optimize: %w", err)
	}

	for _, d := range result.Diagnostics {
		s.logger.Warn("unphysical parameter", slog.String("diagnostic", d.String()))
	}
	s.logger.Info("fit finished",
		slog.String("optimizer", optimizer),
		slog.Float64("chi2", result.ChiSquare),
		slog.Int("dof", result.Model.DOF()),
		slog.Int("iterations", result.Iterations),
		slog.Duration("elapsed", time.Since(start)),
	)
	return result, nil
}

// HasStore reports whether the fit database is enabled.
func (s *Fits) HasStore() bool { return s.store != nil }

// Save stores m under name and returns its id.
func (s *Fits) Save(ctx context.Context, name string, m *fit.Model) (int64, error) {
	if s.store == nil {
		return 0, ErrNoFitStore
	}
	id, err := s.store.Save(ctx, name, m)
	if err != nil {
		return 0, fmt.Errorf("save fit %s: %w", name, err)
	}
	s.logger.Info("fit stored",
		slog.Int64("fit_id", id),
		slog.String("name", name),
		slog.Float64("chi2", m.ChiSquare()),
	)
	return id, nil
}

// SaveAll stores every model atomically and returns their ids in order.
func (s *Fits) SaveAll(ctx context.Context, names []string, models []*fit.Model) ([]int64, error) {
	if s.store == nil {
		return nil, ErrNoFitStore
	}
	ids, err := s.store.SaveAll(ctx, names, models)
	if err != nil {
		return nil, fmt.Errorf("save fits: %w", err)
	}
	s.logger.Info("fits stored", slog.Int("count", len(ids)))
	return ids, nil
}

// Get loads one stored model.
func (s *Fits) Get(ctx context.Context, id int64) (*fit.Model, error) {
	if s.store == nil {
		return nil, ErrNoFitStore
	}
	return s.store.Get(ctx, id)
}

// List returns stored model summaries, newest first.
func (s *Fits) List(ctx context.Context, options ...repository.Option) ([]fit.Summary, error) {
	if s.store == nil {
		return nil, ErrNoFitStore
	}
	return s.store.List(ctx, options...)
}

// Count returns the number of stored models matching the options.
func (s *Fits) Count(ctx context.Context, options ...repository.Option) (int64, error) {
	if s.store == nil {
		return 0, ErrNoFitStore
	}
	return s.store.Count(ctx, options...)
}

// LoadAll loads every matching stored model. Models that fail to decode
// are reported through the returned error alongside the ones that loaded.
func (s *Fits) LoadAll(ctx context.Context, options ...repository.Option) ([]*fit.Model, error) {
	if s.store == nil {
		return nil, ErrNoFitStore
	}
	models, err := s.store.LoadAll(ctx, options...)
	if err != nil {
		s.logger.Warn("some stored fits could not be loaded",
			slog.Int("loaded", len(models)),
			slog.String("error", err.Error()),
		)
	}
	return models, err
}

// Delete removes a stored model.
func (s *Fits) Delete(ctx context.Context, id int64) error {
	if s.store == nil {
		return ErrNoFitStore
	}
	return s.store.Delete(ctx, id)
}
