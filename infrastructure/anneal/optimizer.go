package anneal

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/helixml/linefit/domain/fit"
	"github.com/helixml/linefit/domain/service"
)

// Optimizer minimizes a model's chi-square by simulated annealing.
// A single run is strictly sequential; separate runs may proceed in
// parallel on separate models.
type Optimizer struct {
	synth  service.Synthesizer
	cfg    Config
	logger *slog.Logger
}

var _ service.Optimizer = (*Optimizer)(nil)

// NewOptimizer creates an Optimizer.
func NewOptimizer(synth service.Synthesizer, cfg Config, logger *slog.Logger) (*Optimizer, error) {
	if synth == nil {
		return nil, fmt.Errorf("NewOptimizer: nil synthesizer")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Optimizer{
		synth:  synth,
		cfg:    cfg,
		logger: logger,
	}, nil
}

// Config returns the optimizer configuration.
func (o *Optimizer) Config() Config { return o.cfg }

// Optimize anneals a copy of model. When ctx is cancelled the best model
// found so far is returned together with the context error.
func (o *Optimizer) Optimize(ctx context.Context, model *fit.Model, opts ...service.OptimizeOption) (service.Result, error) {
	callCfg := service.NewOptimizeConfig(opts...)
	seed := o.cfg.Seed
	if s, ok := callCfg.Seed(); ok {
		seed = s
	}

	trial := model.Copy()
	if err := o.synth.UpdateDOF(trial); err != nil {
		return service.Result{}, err
	}
	if err := applyTies(trial, o.cfg.Ties); err != nil {
		return service.Result{}, err
	}
	current, err := o.synth.Evaluate(trial)
	if err != nil {
		return service.Result{}, err
	}

	best := trial.Copy()
	bestChi := current
	delta := CriticalDelta(trial.DOF(), o.cfg.Chi2Padding)
	sched := newSchedule(o.cfg, delta)
	prop := newProposer(o.cfg, seed)
	progress := callCfg.Progress()

	o.logger.Debug("annealing started",
		slog.Float64("chi2", current),
		slog.Int("dof", trial.DOF()),
		slog.Float64("critical_delta", delta),
		slog.Uint64("seed", seed),
	)

	var accepted, rejected int
	var runErr error
	for !sched.done() {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		sched.tick()

		active, err := o.activeAbsorbers(trial)
		if err != nil {
			return service.Result{}, err
		}
		if err := prop.perturb(trial, active, sched.step); err != nil {
			return service.Result{}, err
		}
		next, err := o.synth.Evaluate(trial)
		if err != nil {
			return service.Result{}, err
		}

		improving := next < current
		ok := accept(next, current, bestChi, delta, sched.temperature, prop.uniform)

		if ok {
			accepted++
			current = next
			if next < bestChi {
				bestChi = next
				best = trial.Copy()
				sched.improved()
			}
		} else {
			rejected++
			trial.Restore(best)
			current = bestChi
		}

		sched.advance(ok, improving)
		if progress != nil {
			progress(sched.total, bestChi, sched.temperature)
		}
	}

	if err := o.synth.UpdateDOF(best); err != nil {
		return service.Result{}, err
	}
	best.SetChiSquare(bestChi)

	result := service.Result{
		Model:       best,
		ChiSquare:   bestChi,
		Iterations:  sched.total,
		Accepted:    accepted,
		Rejected:    rejected,
		Temperature: sched.temperature,
		Diagnostics: fit.Diagnose(best),
	}
	for _, d := range result.Diagnostics {
		o.logger.Warn("fit diagnostic", slog.String("diagnostic", d.String()))
	}

	o.logger.Debug("annealing finished",
		slog.Float64("chi2", bestChi),
		slog.Int("iterations", result.Iterations),
		slog.Int("accepted", accepted),
		slog.Int("rejected", rejected),
		slog.Float64("temperature", sched.temperature),
	)

	if runErr != nil {
		return result, runErr
	}
	if sink := callCfg.Sink(); sink != nil {
		if err := sink.Append(ctx, service.NewRecord(best)); err != nil {
			return result, fmt.Errorf("append result: %w", err)
		}
	}
	return result, nil
}

// activeAbsorbers returns the ids of absorbers with at least one line inside
// the model's regions. Line strength is ignored so an absorber that drifts
// weak keeps being perturbed.
func (o *Optimizer) activeAbsorbers(m *fit.Model) (map[string]bool, error) {
	lines, err := o.synth.CandidateLines(m)
	if err != nil {
		return nil, err
	}
	regions := m.Regions()
	active := make(map[string]bool, m.NumAbsorbers())
	for _, l := range lines {
		if regions.Contains(l.ObservedWavelength()) {
			active[l.AbsorberID()] = true
		}
	}
	return active, nil
}
