// Package anneal implements a simulated annealing optimizer for fit models.
package anneal

import (
	"errors"
	"fmt"
	"math"

	"github.com/helixml/linefit/domain/fit"
)

// ErrInvalidConfig indicates an unusable optimizer configuration.
var ErrInvalidConfig = errors.New("invalid anneal configuration")

// Default configuration values.
const (
	DefaultMaxIterations      = 200
	DefaultMaxTotalIterations = 20000
	DefaultMinTemperature     = 1e-3
	DefaultStepFloor          = 0.01
	DefaultStepDecay          = 0.9
	DefaultCoolingRate        = 0.9
	DefaultChi2Padding        = 10.0
	DefaultContinuumFraction  = 0.1
)

// MinContinuumWidth is the smallest continuum y proposal width, so a point
// at zero flux can still move.
const MinContinuumWidth = 1e-3

// Bound limits the values a proposal may take for one parameter.
type Bound struct {
	Min float64
	Max float64
}

// Contains reports whether v lies in [Min, Max].
func (b Bound) Contains(v float64) bool {
	return b.Min <= v && v <= b.Max
}

// Tie couples two parameters. After each perturbation the unlocked side
// takes the locked side's value; when both are unlocked B follows A.
type Tie struct {
	A fit.ParameterRef
	B fit.ParameterRef
}

// Config holds annealing parameters.
type Config struct {
	// MaxIterations is the inner iteration budget per temperature.
	MaxIterations int
	// MaxTotalIterations caps the whole run.
	MaxTotalIterations int
	MinTemperature     float64
	StepFloor          float64
	StepDecay          float64
	CoolingRate        float64
	// Chi2Padding widens the critical chi-square excursion.
	Chi2Padding float64
	Seed        uint64
	// Widths is the proposal range per absorber attribute. The proposal
	// sigma is step * width / 2.
	Widths map[fit.Attribute]float64
	// ContinuumFraction sets the continuum y proposal range as a fraction of |y|.
	ContinuumFraction float64
	Bounds            map[fit.ParameterRef]Bound
	Ties              []Tie
}

// DefaultConfig returns the default annealing configuration.
func DefaultConfig() Config {
	return Config{
		MaxIterations:      DefaultMaxIterations,
		MaxTotalIterations: DefaultMaxTotalIterations,
		MinTemperature:     DefaultMinTemperature,
		StepFloor:          DefaultStepFloor,
		StepDecay:          DefaultStepDecay,
		CoolingRate:        DefaultCoolingRate,
		Chi2Padding:        DefaultChi2Padding,
		Widths:             DefaultWidths(),
		ContinuumFraction:  DefaultContinuumFraction,
	}
}

// DefaultWidths returns the default absorber proposal widths.
func DefaultWidths() map[fit.Attribute]float64 {
	return map[fit.Attribute]float64{
		fit.AttrN: 1.0,
		fit.AttrB: 10.0,
		fit.AttrZ: 1e-4,
	}
}

// WithSeed returns a copy of the config using seed.
func (c Config) WithSeed(seed uint64) Config {
	c.Seed = seed
	return c
}

// WithBounds returns a copy of the config with the given bounds.
func (c Config) WithBounds(bounds map[fit.ParameterRef]Bound) Config {
	c.Bounds = bounds
	return c
}

// WithTies returns a copy of the config with the given ties.
func (c Config) WithTies(ties []Tie) Config {
	c.Ties = ties
	return c
}

// Validate checks the numeric settings.
func (c Config) Validate() error {
	switch {
	case c.MaxIterations < 1:
		return fmt.Errorf("%w: max iterations %d", ErrInvalidConfig, c.MaxIterations)
	case c.MaxTotalIterations < 1:
		return fmt.Errorf("%w: max total iterations %d", ErrInvalidConfig, c.MaxTotalIterations)
	case c.MinTemperature <= 0:
		return fmt.Errorf("%w: min temperature %g", ErrInvalidConfig, c.MinTemperature)
	case c.StepDecay <= 0 || c.StepDecay >= 1:
		return fmt.Errorf("%w: step decay %g must be in (0, 1)", ErrInvalidConfig, c.StepDecay)
	case c.CoolingRate <= 0 || c.CoolingRate >= 1:
		return fmt.Errorf("%w: cooling rate %g must be in (0, 1)", ErrInvalidConfig, c.CoolingRate)
	case c.ContinuumFraction < 0:
		return fmt.Errorf("%w: continuum fraction %g", ErrInvalidConfig, c.ContinuumFraction)
	}
	for ref, b := range c.Bounds {
		if b.Min > b.Max {
			return fmt.Errorf("%w: bound %s min %g exceeds max %g", ErrInvalidConfig, ref, b.Min, b.Max)
		}
	}
	return nil
}

func (c Config) width(attr fit.Attribute, value float64) float64 {
	if attr == fit.AttrY {
		if value < 0 {
			value = -value
		}
		return math.Max(c.ContinuumFraction*value, MinContinuumWidth)
	}
	return c.Widths[attr]
}
