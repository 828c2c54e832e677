// Package linefit fits Voigt absorption-line models to astronomical spectra.
//
// A fit file names the observed spectrum, the fitting regions, a continuum
// and a set of absorbers. linefit synthesizes the model spectrum, optimizes
// the free parameters by simulated annealing (or an external program) and
// sweeps chosen parameters across grids in parallel.
//
// Basic usage:
//
//	client, err := linefit.New(
//	    linefit.WithAtomFile("atom.dat"),
//	    linefit.WithSQLite("fits.db"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	model, err := client.Load("q1422.xml")
//	result, err := client.Fit(ctx, model, "anneal")
//
//	plan, err := config.LoadSweep("sweep.yaml")
//	report, err := client.Sweep(ctx, model, plan)
package linefit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/helixml/linefit/application/service"
	"github.com/helixml/linefit/domain/atomic"
	"github.com/helixml/linefit/domain/fit"
	domainservice "github.com/helixml/linefit/domain/service"
	domaintracking "github.com/helixml/linefit/domain/tracking"
	"github.com/helixml/linefit/infrastructure/anneal"
	"github.com/helixml/linefit/infrastructure/api"
	"github.com/helixml/linefit/infrastructure/external"
	"github.com/helixml/linefit/infrastructure/fitfile"
	"github.com/helixml/linefit/infrastructure/metrics"
	"github.com/helixml/linefit/infrastructure/persistence"
	"github.com/helixml/linefit/infrastructure/sink"
	"github.com/helixml/linefit/infrastructure/spectrumfile"
	"github.com/helixml/linefit/infrastructure/synthesis"
	"github.com/helixml/linefit/infrastructure/tracking"
	"github.com/helixml/linefit/internal/config"
	"github.com/helixml/linefit/internal/database"
	"github.com/helixml/linefit/internal/log"
)

// progressInterval is the minimum time between progress log lines per job.
const progressInterval = time.Second

// Client is the main entry point for the linefit library.
//
// Access services via struct fields:
//
//	client.Fits.List(ctx)
//	client.Sweeps.Progress()
type Client struct {
	Fits   *service.Fits
	Sweeps *service.Sweep

	cfg     config.AppConfig
	table   *atomic.Table
	engine  *synthesis.Engine
	metrics *metrics.Collector
	db      *database.Database
	server  *api.Server
	closers []io.Closer

	logger *slog.Logger
	closed bool
	mu     sync.Mutex
}

var _ service.OptimizerSource = (*Client)(nil)

// New creates a new Client with the given options.
func New(opts ...Option) (*Client, error) {
	cfg := newClientConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	logger := cfg.logger
	if logger == nil {
		logger = log.Default().Slog()
	}

	table := cfg.table
	if table == nil {
		t, err := atomic.Load(cfg.app.AtomFile())
		if err != nil {
			return nil, fmt.Errorf("load atomic table: %w", err)
		}
		table = t
	}
	logger.Debug("atomic table loaded", slog.Int("ions", len(table.Ions())))

	// Held progress is flushed before any caller-supplied closer, which may
	// be the log sink itself.
	progress := tracking.NewThrottle(tracking.NewLoggingReporter(logger), progressInterval)

	client := &Client{
		cfg:     cfg.app,
		table:   table,
		engine:  synthesis.NewEngine(table, instrument(cfg.app.Instrument()), logger),
		metrics: metrics.NewCollector(),
		closers: append([]io.Closer{progress}, cfg.closers...),
		logger:  logger,
	}
	client.Fits = service.NewFits(client, logger)
	client.Sweeps = service.NewSweep(client, cfg.app.WorkerCount(), cfg.app.Anneal().Seed(), logger).
		WithMetrics(client.metrics).
		WithReporter(progress)

	if cfg.app.HasDatabase() {
		db, err := openDatabase(context.Background(), cfg.app, logger)
		if err != nil {
			return nil, err
		}
		client.db = &db
		client.Fits.WithStore(persistence.NewFitStore(db))
		client.Sweeps.WithStore(persistence.NewResultStore(db))
	}

	if addr := cfg.app.MetricsAddr(); addr != "" {
		server := api.NewServer(addr, logger)
		server.MountStatus(client.metrics.Handler(), client.status)
		client.server = &server
		go func() {
			if err := server.Start(); err != nil {
				logger.Error("status server stopped", slog.String("error", err.Error()))
			}
		}()
	}

	return client, nil
}

func openDatabase(ctx context.Context, cfg config.AppConfig, logger *slog.Logger) (database.Database, error) {
	db, err := database.NewDatabase(ctx, cfg.DBURL(),
		database.WithLogger(logger),
		database.WithMaxOpenConns(cfg.DBMaxOpenConns()),
	)
	if err != nil {
		return database.Database{}, fmt.Errorf("open database: %w", err)
	}
	if err := persistence.AutoMigrate(ctx, db); err != nil {
		errClose := db.Close()
		return database.Database{}, errors.Join(fmt.Errorf("auto migrate: %w", err), errClose)
	}
	if err := persistence.ValidateSchema(ctx, db); err != nil {
		errClose := db.Close()
		return database.Database{}, errors.Join(fmt.Errorf("validate schema: %w", err), errClose)
	}
	return db, nil
}

// Close releases all resources and stops the status server.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClientClosed
	}
	c.closed = true
	c.logger.Debug("closing linefit client")

	var errs []error
	if c.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := c.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown status server: %w", err))
		}
		cancel()
	}

	for _, closer := range c.closers {
		if err := closer.Close(); err != nil {
			c.logger.Error("failed to close resource", slog.Any("error", err))
		}
	}

	if c.db != nil {
		if err := c.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}

	return errors.Join(errs...)
}

func (c *Client) checkOpen() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClientClosed
	}
	return nil
}

// Config returns the application configuration the client was built with.
func (c *Client) Config() config.AppConfig { return c.cfg }

// Table returns the atomic line list.
func (c *Client) Table() *atomic.Table { return c.table }

// Engine returns the synthesis engine for the configured instrument.
func (c *Client) Engine() *synthesis.Engine { return c.engine }

// Metrics returns the metrics collector.
func (c *Client) Metrics() *metrics.Collector { return c.metrics }

// Logger returns the client's logger.
func (c *Client) Logger() *slog.Logger { return c.logger }

// Optimizer builds the named optimizer with the plan's instrument, anneal,
// tie and bound overrides applied. An empty plan uses the client
// configuration unchanged.
func (c *Client) Optimizer(name string, plan config.SweepConfig) (domainservice.Optimizer, error) {
	cfg := plan.Apply(c.cfg)

	engine := c.engine
	if cfg.Instrument() != c.cfg.Instrument() {
		engine = synthesis.NewEngine(c.table, instrument(cfg.Instrument()), c.logger)
	}

	switch name {
	case "", config.OptimizerAnneal:
		ac, err := annealConfig(cfg.Anneal(), plan)
		if err != nil {
			return nil, err
		}
		opt, err := anneal.NewOptimizer(engine, ac, c.logger)
		if err != nil {
			return nil, err
		}
		return opt, nil
	case config.OptimizerExternal:
		ext := cfg.External()
		if !ext.IsConfigured() {
			return nil, external.ErrNoCommand
		}
		opt, err := external.NewOptimizer(engine, external.Config{
			Command: ext.Command(),
			Args:    ext.Args(),
			Timeout: ext.Timeout(),
		}, c.logger)
		if err != nil {
			return nil, err
		}
		return opt, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownOptimizer, name)
}

func instrument(cfg config.InstrumentConfig) synthesis.Instrument {
	return synthesis.Instrument{VDisp: cfg.VDisp(), VSig: cfg.VSig(), Shift: cfg.Shift()}
}

func annealConfig(cfg config.AnnealConfig, plan config.SweepConfig) (anneal.Config, error) {
	ac := anneal.DefaultConfig()
	ac.MaxIterations = cfg.MaxIterations()
	ac.MaxTotalIterations = cfg.MaxTotalIterations()
	ac.MinTemperature = cfg.MinTemperature()
	ac.StepFloor = cfg.StepFloor()
	ac.StepDecay = cfg.StepDecay()
	ac.CoolingRate = cfg.CoolingRate()
	ac.Chi2Padding = cfg.Chi2Padding()
	ac = ac.WithSeed(cfg.Seed())

	pairs, err := plan.TieRefs()
	if err != nil {
		return anneal.Config{}, err
	}
	if len(pairs) > 0 {
		ties := make([]anneal.Tie, len(pairs))
		for i, p := range pairs {
			ties[i] = anneal.Tie{A: p[0], B: p[1]}
		}
		ac = ac.WithTies(ties)
	}

	limits, err := plan.BoundRefs()
	if err != nil {
		return anneal.Config{}, err
	}
	if len(limits) > 0 {
		bounds := make(map[fit.ParameterRef]anneal.Bound, len(limits))
		for ref, l := range limits {
			bounds[ref] = anneal.Bound{Min: l.Min, Max: l.Max}
		}
		ac = ac.WithBounds(bounds)
	}
	return ac, nil
}

// Load reads a fit file and the spectrum it names, then evaluates the
// model so its chi-square and degrees of freedom are current.
func (c *Client) Load(path string) (*fit.Model, error) {
	m, err := fitfile.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := c.attachDataset(m); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := c.evaluate(m); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

func (c *Client) attachDataset(m *fit.Model) error {
	if m.Dataset() != nil {
		return nil
	}
	p := m.DatasetPath()
	if p == "" {
		return ErrNoDataset
	}
	d, err := spectrumfile.Read(p)
	if err != nil {
		return err
	}
	m.SetDataset(p, d)
	return nil
}

func (c *Client) evaluate(m *fit.Model) error {
	if err := c.engine.UpdateDOF(m); err != nil {
		return err
	}
	_, err := c.engine.Evaluate(m)
	return err
}

// Save writes m as a fit file.
func (c *Client) Save(path string, m *fit.Model) error {
	return fitfile.WriteFile(path, m)
}

// Fit optimizes m with the named optimizer. The input model is not modified.
func (c *Client) Fit(ctx context.Context, m *fit.Model, optimizer string, opts ...domainservice.OptimizeOption) (domainservice.Result, error) {
	if err := c.checkOpen(); err != nil {
		return domainservice.Result{}, err
	}
	return c.Fits.Fit(ctx, m, optimizer, opts...)
}

// Sweep runs a parameter sweep over m.
func (c *Client) Sweep(ctx context.Context, m *fit.Model, plan config.SweepConfig) (service.SweepReport, error) {
	if err := c.checkOpen(); err != nil {
		return service.SweepReport{}, err
	}
	return c.Sweeps.Run(ctx, m, plan)
}

// Merge merges every per-job result file in dir.
func (c *Client) Merge(dir string) (map[string]string, error) {
	return sink.MergeAll(dir)
}

// Synthesize evaluates m against its dataset.
func (c *Client) Synthesize(m *fit.Model) (synthesis.Synthesis, error) {
	return c.engine.Synthesize(m)
}

// WriteSynthesis writes wavelength, flux, error, continuum and model
// columns for m.
func (c *Client) WriteSynthesis(w io.Writer, m *fit.Model) error {
	s, err := c.engine.Synthesize(m)
	if err != nil {
		return err
	}
	d := m.Dataset()
	return spectrumfile.Write(w,
		spectrumfile.Column{Name: "wavelength", Values: s.Wavelength},
		spectrumfile.Column{Name: "flux", Values: d.Flux()},
		spectrumfile.Column{Name: "error", Values: d.Error()},
		spectrumfile.Column{Name: "continuum", Values: s.Continuum},
		spectrumfile.Column{Name: "model", Values: s.Absorption},
	)
}

// Import loads each fit file and stores it in the fit database under its
// base name. Every file is loaded before any is stored, and the files are
// stored in one transaction: either all are imported or none are.
func (c *Client) Import(ctx context.Context, paths ...string) ([]int64, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	if !c.Fits.HasStore() {
		return nil, ErrNoDatabase
	}

	names := make([]string, 0, len(paths))
	models := make([]*fit.Model, 0, len(paths))
	for _, p := range paths {
		m, err := c.Load(p)
		if err != nil {
			return nil, err
		}
		names = append(names, strings.TrimSuffix(filepath.Base(p), filepath.Ext(p)))
		models = append(models, m)
	}
	return c.Fits.SaveAll(ctx, names, models)
}

func (c *Client) status() api.Status {
	runID, total, completed, failed := c.Sweeps.Progress()
	st := api.Status{
		RunID:     runID,
		Total:     total,
		Completed: completed,
		Failed:    failed,
	}
	if total > completed+failed {
		st.Status = "running"
	}
	if runID != "" {
		summary := domaintracking.SummaryFromStatuses(c.Sweeps.Statuses())
		st.RunState = string(summary.State())
		st.Message = summary.Message()
	}
	if best := c.metrics.Best(); !math.IsInf(best, 1) {
		st.Best = best
	}
	return st
}
