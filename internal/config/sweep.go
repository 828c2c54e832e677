package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/helixml/linefit/domain/fit"
)

// ErrInvalidSweep indicates a sweep file that cannot be run against a model.
var ErrInvalidSweep = errors.New("invalid sweep configuration")

// Physical limits enforced on scanned absorber ranges.
const (
	MinColumnDensity = 8.0
	MaxColumnDensity = 25.0
)

// Optimizer names accepted in a sweep file.
const (
	OptimizerAnneal   = "anneal"
	OptimizerExternal = "external"
)

// Range is a scanned interval sampled at Steps evenly spaced values.
type Range struct {
	Min   float64 `yaml:"min"`
	Max   float64 `yaml:"max"`
	Steps int     `yaml:"steps"`
}

// Value returns the k-th sample. A single step samples Min.
func (r Range) Value(k int) float64 {
	if r.Steps <= 1 {
		return r.Min
	}
	return r.Min + float64(k)*(r.Max-r.Min)/float64(r.Steps-1)
}

// Limit bounds the values the optimizer may propose for one parameter.
type Limit struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// InstrumentOverride replaces instrument settings for one sweep.
type InstrumentOverride struct {
	VDisp *float64 `yaml:"vdisp,omitempty"`
	VSig  *float64 `yaml:"vsig,omitempty"`
	Shift *int     `yaml:"shift,omitempty"`
}

// AnnealOverride replaces annealing settings for one sweep.
type AnnealOverride struct {
	MaxIterations      *int     `yaml:"max_iterations,omitempty"`
	MaxTotalIterations *int     `yaml:"max_total_iterations,omitempty"`
	MinTemperature     *float64 `yaml:"min_temperature,omitempty"`
	StepFloor          *float64 `yaml:"step_floor,omitempty"`
	StepDecay          *float64 `yaml:"step_decay,omitempty"`
	CoolingRate        *float64 `yaml:"cooling_rate,omitempty"`
	Chi2Padding        *float64 `yaml:"chi2_padding,omitempty"`
}

// SweepConfig is the YAML description of a parameter sweep.
type SweepConfig struct {
	// Optimizer is "anneal" (default) or "external".
	Optimizer string `yaml:"optimizer"`

	// OutputDir receives one CSV per job and the merged files.
	OutputDir string `yaml:"output_dir"`

	// Seed is the base PRNG seed; job i uses Seed+i.
	Seed *uint64 `yaml:"seed,omitempty"`

	// Absorbers maps absorber id to scanned attributes.
	Absorbers map[string]map[string]Range `yaml:"absorbers"`

	// Continuum maps continuum point id to scanned attributes.
	Continuum map[string]map[string]Range `yaml:"continuum"`

	// Ties couples pairs of "<id>:<attr>" references.
	Ties [][]string `yaml:"ties"`

	// Bounds limits proposals per "<id>:<attr>" reference.
	Bounds map[string]Limit `yaml:"bounds"`

	Instrument *InstrumentOverride `yaml:"instrument,omitempty"`
	Anneal     *AnnealOverride     `yaml:"anneal,omitempty"`
	Workers    *int                `yaml:"workers,omitempty"`
}

// Scan is one scanned attribute of one entity.
type Scan struct {
	Ref   fit.ParameterRef
	Range Range
}

// Prefix returns the result file prefix "<entity>_<attr>".
func (s Scan) Prefix() string { return s.Ref.Column() }

// LoadSweep reads and parses a sweep file.
func LoadSweep(path string) (SweepConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SweepConfig{}, fmt.Errorf("read sweep %s: %w", path, err)
	}
	cfg, err := ParseSweep(data)
	if err != nil {
		return SweepConfig{}, fmt.Errorf("parse sweep %s: %w", path, err)
	}
	return cfg, nil
}

// ParseSweep parses a sweep document. Unknown keys are rejected.
func ParseSweep(data []byte) (SweepConfig, error) {
	var cfg SweepConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return SweepConfig{}, fmt.Errorf("%w: %w", ErrInvalidSweep, err)
	}
	return cfg, nil
}

// OptimizerName returns the selected optimizer, defaulting to anneal.
func (s SweepConfig) OptimizerName() string {
	if s.Optimizer == "" {
		return OptimizerAnneal
	}
	return s.Optimizer
}

// BaseSeed returns the configured seed, or fallback when none is set.
func (s SweepConfig) BaseSeed(fallback uint64) uint64 {
	if s.Seed != nil {
		return *s.Seed
	}
	return fallback
}

// Scans returns every scanned attribute, absorbers first, each group
// ordered by entity id and then canonical attribute order.
func (s SweepConfig) Scans() []Scan {
	var scans []Scan
	scans = appendScans(scans, s.Absorbers, fit.AbsorberAttributes)
	scans = appendScans(scans, s.Continuum, fit.ContinuumAttributes)
	return scans
}

func appendScans(scans []Scan, entities map[string]map[string]Range, order []fit.Attribute) []Scan {
	ids := make([]string, 0, len(entities))
	for id := range entities {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		for _, attr := range order {
			r, ok := entities[id][string(attr)]
			if !ok {
				continue
			}
			scans = append(scans, Scan{Ref: fit.NewParameterRef(id, attr), Range: r})
		}
	}
	return scans
}

// Jobs returns the total number of jobs the sweep produces.
func (s SweepConfig) Jobs() int {
	total := 0
	for _, scan := range s.Scans() {
		total += scan.Range.Steps
	}
	return total
}

// TieRefs parses the tie references.
func (s SweepConfig) TieRefs() ([][2]fit.ParameterRef, error) {
	ties := make([][2]fit.ParameterRef, 0, len(s.Ties))
	for i, pair := range s.Ties {
		if len(pair) != 2 {
			return nil, fmt.Errorf("%w: tie %d has %d references, want 2", ErrInvalidSweep, i, len(pair))
		}
		a, err := parseRef(pair[0])
		if err != nil {
			return nil, fmt.Errorf("%w: tie %d: %w", ErrInvalidSweep, i, err)
		}
		b, err := parseRef(pair[1])
		if err != nil {
			return nil, fmt.Errorf("%w: tie %d: %w", ErrInvalidSweep, i, err)
		}
		ties = append(ties, [2]fit.ParameterRef{a, b})
	}
	return ties, nil
}

// BoundRefs parses the bound references.
func (s SweepConfig) BoundRefs() (map[fit.ParameterRef]Limit, error) {
	bounds := make(map[fit.ParameterRef]Limit, len(s.Bounds))
	for key, limit := range s.Bounds {
		ref, err := parseRef(key)
		if err != nil {
			return nil, fmt.Errorf("%w: bound: %w", ErrInvalidSweep, err)
		}
		if limit.Min > limit.Max {
			return nil, fmt.Errorf("%w: bound %s min %g exceeds max %g", ErrInvalidSweep, key, limit.Min, limit.Max)
		}
		bounds[ref] = limit
	}
	return bounds, nil
}

// Validate checks the sweep against the model it will run on. Every
// failure is fatal and reported before any job starts.
func (s SweepConfig) Validate(m *fit.Model) error {
	switch s.OptimizerName() {
	case OptimizerAnneal, OptimizerExternal:
	default:
		return fmt.Errorf("%w: unknown optimizer %q", ErrInvalidSweep, s.Optimizer)
	}
	if s.Workers != nil && *s.Workers < 0 {
		return fmt.Errorf("%w: workers %d", ErrInvalidSweep, *s.Workers)
	}

	for id, attrs := range s.Absorbers {
		if _, ok := m.Absorber(id); !ok {
			return fmt.Errorf("%w: unknown absorber %q", ErrInvalidSweep, id)
		}
		for name, r := range attrs {
			attr, err := scannedAttribute(id, name, fit.Attribute.IsAbsorber)
			if err != nil {
				return err
			}
			if err := validateRange(id, attr, r); err != nil {
				return err
			}
		}
	}
	for id, attrs := range s.Continuum {
		if id == fit.UnsetID {
			return fmt.Errorf("%w: continuum points without an id cannot be scanned", ErrInvalidSweep)
		}
		if _, ok := m.ContinuumPoint(id); !ok {
			return fmt.Errorf("%w: unknown continuum point %q", ErrInvalidSweep, id)
		}
		for name, r := range attrs {
			attr, err := scannedAttribute(id, name, fit.Attribute.IsContinuum)
			if err != nil {
				return err
			}
			if err := validateRange(id, attr, r); err != nil {
				return err
			}
			if attr == fit.AttrX {
				if err := validateContinuumX(m, id, r); err != nil {
					return err
				}
			}
		}
	}
	if len(s.Scans()) == 0 {
		return fmt.Errorf("%w: nothing to scan", ErrInvalidSweep)
	}

	ties, err := s.TieRefs()
	if err != nil {
		return err
	}
	for _, tie := range ties {
		for _, ref := range tie {
			if _, err := m.Param(ref); err != nil {
				return fmt.Errorf("%w: tie %s: %w", ErrInvalidSweep, ref, err)
			}
		}
	}

	bounds, err := s.BoundRefs()
	if err != nil {
		return err
	}
	for ref := range bounds {
		if _, err := m.Param(ref); err != nil {
			return fmt.Errorf("%w: bound %s: %w", ErrInvalidSweep, ref, err)
		}
	}
	return nil
}

// validateContinuumX rejects scan values that land on another point's x,
// which would leave the continuum with two knots at one wavelength.
func validateContinuumX(m *fit.Model, id string, r Range) error {
	for k := 0; k < r.Steps; k++ {
		v := r.Value(k)
		for _, c := range m.ContinuumPoints() {
			if c.ID() != id && c.X() == v {
				return fmt.Errorf("%w: %s:x value %g collides with continuum point %q", ErrInvalidSweep, id, v, c.ID())
			}
		}
	}
	return nil
}

func parseRef(s string) (fit.ParameterRef, error) {
	ref, err := fit.ParseParameterRef(s)
	if err != nil {
		return fit.ParameterRef{}, err
	}
	if ref.Attribute.IsContinuum() && ref.Entity == fit.UnsetID {
		return fit.ParameterRef{}, fmt.Errorf("%s: continuum point has no id", s)
	}
	return ref, nil
}

func scannedAttribute(id, name string, belongs func(fit.Attribute) bool) (fit.Attribute, error) {
	attr, err := fit.ParseAttribute(name)
	if err != nil || !belongs(attr) {
		return "", fmt.Errorf("%w: %s has no attribute %q", ErrInvalidSweep, id, name)
	}
	return attr, nil
}

func validateRange(id string, attr fit.Attribute, r Range) error {
	ref := fit.NewParameterRef(id, attr)
	switch {
	case r.Steps < 1:
		return fmt.Errorf("%w: %s steps %d", ErrInvalidSweep, ref, r.Steps)
	case r.Min > r.Max:
		return fmt.Errorf("%w: %s min %g exceeds max %g", ErrInvalidSweep, ref, r.Min, r.Max)
	case attr == fit.AttrN && (r.Min < MinColumnDensity || r.Max > MaxColumnDensity):
		return fmt.Errorf("%w: %s range [%g, %g] outside [%g, %g]", ErrInvalidSweep, ref, r.Min, r.Max, MinColumnDensity, MaxColumnDensity)
	case attr == fit.AttrB && r.Min <= 0:
		return fmt.Errorf("%w: %s min %g must be positive", ErrInvalidSweep, ref, r.Min)
	}
	return nil
}

// Apply returns cfg with the sweep's instrument, anneal and worker
// overrides applied.
func (s SweepConfig) Apply(cfg AppConfig) AppConfig {
	if in := s.Instrument; in != nil {
		inst := cfg.Instrument()
		if in.VDisp != nil {
			inst = inst.WithVDisp(*in.VDisp)
		}
		if in.VSig != nil {
			inst = inst.WithVSig(*in.VSig)
		}
		if in.Shift != nil {
			inst = inst.WithShift(*in.Shift)
		}
		cfg = cfg.Apply(WithInstrument(inst))
	}

	if a := s.Anneal; a != nil {
		var opts []AnnealOption
		if a.MaxIterations != nil {
			opts = append(opts, WithMaxIterations(*a.MaxIterations))
		}
		if a.MaxTotalIterations != nil {
			opts = append(opts, WithMaxTotalIterations(*a.MaxTotalIterations))
		}
		if a.MinTemperature != nil {
			opts = append(opts, WithMinTemperature(*a.MinTemperature))
		}
		if a.StepFloor != nil {
			opts = append(opts, WithStepFloor(*a.StepFloor))
		}
		if a.StepDecay != nil {
			opts = append(opts, WithStepDecay(*a.StepDecay))
		}
		if a.CoolingRate != nil {
			opts = append(opts, WithCoolingRate(*a.CoolingRate))
		}
		if a.Chi2Padding != nil {
			opts = append(opts, WithChi2Padding(*a.Chi2Padding))
		}
		cfg = cfg.Apply(WithAnneal(cfg.Anneal().Apply(opts...)))
	}

	if s.Seed != nil {
		cfg = cfg.Apply(WithAnneal(cfg.Anneal().Apply(WithSeed(*s.Seed))))
	}
	if s.Workers != nil {
		cfg = cfg.Apply(WithWorkerCount(*s.Workers))
	}
	return cfg
}
