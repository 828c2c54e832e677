package anneal

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// criticalConfidence is the chi-square confidence level of the excursion bound.
const criticalConfidence = 0.99

// CriticalDelta returns the largest chi-square excursion above the best
// model that a trial may reach: the 99% chi-square quantile for dof minus
// dof, plus padding. dof below one is treated as one.
func CriticalDelta(dof int, padding float64) float64 {
	k := float64(max(dof, 1))
	return distuv.ChiSquared{K: k}.Quantile(criticalConfidence) - k + padding
}

// accept decides whether a trial with chi-square next replaces the current
// state at chi-square current. Improvements are always accepted and trials
// past best + delta never are. Otherwise the Metropolis rule applies with a
// uniform draw, which is only taken in that case.
func accept(next, current, best, delta, temperature float64, uniform func() float64) bool {
	if next < current {
		return true
	}
	if next > best+delta {
		return false
	}
	return uniform() < math.Exp(-(next-current)/temperature)
}

// schedule tracks temperature, step size and the iteration counters.
type schedule struct {
	cfg         Config
	temperature float64
	step        float64
	inner       int
	total       int
}

func newSchedule(cfg Config, initial float64) *schedule {
	return &schedule{
		cfg:         cfg,
		temperature: initial,
		step:        1,
	}
}

// done reports whether the run should stop.
func (s *schedule) done() bool {
	return s.temperature < s.cfg.MinTemperature || s.total >= s.cfg.MaxTotalIterations
}

// tick counts one iteration.
func (s *schedule) tick() {
	s.inner++
	s.total++
}

// improved resets the inner counter after a new best.
func (s *schedule) improved() {
	s.inner = 0
}

// advance cools when the step has collapsed or the inner budget is spent,
// and otherwise shrinks the step after a non-improving accepted move.
func (s *schedule) advance(accepted, improving bool) {
	if s.step < s.cfg.StepFloor || s.inner >= s.cfg.MaxIterations {
		factor := s.cfg.CoolingRate * float64(s.inner) / float64(s.cfg.MaxIterations)
		s.temperature *= math.Min(math.Max(factor, 0.01), s.cfg.CoolingRate)
		s.step = 1
		s.inner = 0
		return
	}
	if accepted && !improving {
		s.step *= s.cfg.StepDecay
	}
}
