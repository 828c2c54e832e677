package anneal

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/helixml/linefit/domain/fit"
	"gonum.org/v1/gonum/stat/distuv"
)

// proposer perturbs the unlocked parameters of a model.
type proposer struct {
	cfg Config
	src rand.Source
}

func newProposer(cfg Config, seed uint64) *proposer {
	return &proposer{
		cfg: cfg,
		src: rand.NewPCG(seed, seed^0x9e3779b97f4a7c15),
	}
}

// uniform draws from U(0, 1).
func (p *proposer) uniform() float64 {
	return distuv.Uniform{Min: 0, Max: 1, Src: p.src}.Rand()
}

// draw samples around v with the given sigma, reflecting inward from a
// violated bound.
func (p *proposer) draw(ref fit.ParameterRef, v, sigma float64) float64 {
	if sigma <= 0 {
		return v
	}
	next := distuv.Normal{Mu: v, Sigma: sigma, Src: p.src}.Rand()

	b, ok := p.cfg.Bounds[ref]
	if !ok || b.Contains(next) {
		return next
	}
	offset := math.Abs(distuv.Normal{Mu: 0, Sigma: sigma, Src: p.src}.Rand())
	if next < b.Min {
		next = b.Min + offset
	} else {
		next = b.Max - offset
	}
	return math.Min(math.Max(next, b.Min), b.Max)
}

// perturb applies one randomization pass to m: unlocked attributes of
// active absorbers, unlocked continuum y inside the regions, then ties.
func (p *proposer) perturb(m *fit.Model, active map[string]bool, step float64) error {
	for i := 0; i < m.NumAbsorbers(); i++ {
		a := m.AbsorberAt(i)
		if !active[a.ID()] {
			continue
		}
		for _, attr := range a.Unlocked() {
			param, _ := a.Param(attr)
			sigma := step * p.cfg.width(attr, param.Value) / 2
			a.SetValue(attr, p.draw(fit.NewParameterRef(a.ID(), attr), param.Value, sigma))
		}
	}

	regions := m.Regions()
	for i := 0; i < m.NumContinuumPoints(); i++ {
		c := m.ContinuumAt(i)
		y, _ := c.Param(fit.AttrY)
		if y.Locked || !regions.Contains(c.X()) {
			continue
		}
		sigma := step * p.cfg.width(fit.AttrY, y.Value) / 2
		c.SetValue(fit.AttrY, p.draw(fit.NewParameterRef(c.ID(), fit.AttrY), y.Value, sigma))
	}

	return applyTies(m, p.cfg.Ties)
}

// applyTies copies values across tied parameters.
func applyTies(m *fit.Model, ties []Tie) error {
	for _, t := range ties {
		a, err := m.Param(t.A)
		if err != nil {
			return fmt.Errorf("tie %s=%s: %w", t.A, t.B, err)
		}
		b, err := m.Param(t.B)
		if err != nil {
			return fmt.Errorf("tie %s=%s: %w", t.A, t.B, err)
		}

		switch {
		case a.Locked && b.Locked:
			continue
		case b.Locked:
			err = m.SetParam(t.A, b.Value)
		default:
			err = m.SetParam(t.B, a.Value)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
