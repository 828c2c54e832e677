// Package synthesis builds model spectra from absorbers and a continuum and
// scores them against observed data.
package synthesis

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/helixml/linefit/domain/atomic"
	"github.com/helixml/linefit/domain/fit"
)

// ErrNoDataset indicates a model without an attached observed dataset.
var ErrNoDataset = errors.New("model has no dataset")

// Physical constants.
const (
	SpeedOfLight = 299792.458 // km/s

	// tauScale is pi e^2 / (m_e c) in units that take N in cm^-2,
	// wavelength in Angstrom and b in km/s.
	tauScale = 1.4974e-15

	// dampingScale converts Angstrom to cm and km/s to cm/s for the damping parameter.
	dampingScale = 1e-13
)

// Line detection thresholds.
var (
	// strengthThreshold is the minimum f * 10^N for a line to contribute.
	strengthThreshold = math.Pow(10, 11.25) * 0.416
)

// EquivalentWidthFloor is the minimum equivalent width, in pixels, for a
// line to count its absorber's free parameters.
const EquivalentWidthFloor = 0.29

// Synthesis is the result of evaluating a model.
type Synthesis struct {
	Wavelength []float64
	Continuum  []float64
	Absorption []float64
	Lines      []fit.SpectralLine
	ChiSquare  float64
	Masked     int
}

// Engine synthesizes model spectra. It is safe for concurrent use; the
// atomic table is shared read-only.
type Engine struct {
	table      *atomic.Table
	instrument Instrument
	logger     *slog.Logger
}

// NewEngine creates an Engine.
func NewEngine(table *atomic.Table, instrument Instrument, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		table:      table,
		instrument: instrument,
		logger:     logger,
	}
}

// Instrument returns the engine's instrument.
func (e *Engine) Instrument() Instrument { return e.instrument }

// Table returns the atomic reference table.
func (e *Engine) Table() *atomic.Table { return e.table }

// CandidateLines derives the lines of every absorber that fall strictly
// inside the dataset's wavelength range, regardless of strength.
func (e *Engine) CandidateLines(m *fit.Model) ([]fit.SpectralLine, error) {
	d := m.Dataset()
	if d == nil {
		return nil, ErrNoDataset
	}

	var lines []fit.SpectralLine
	for _, a := range m.Absorbers() {
		derived, err := a.Lines(e.table)
		if err != nil {
			return nil, err
		}
		for _, l := range derived {
			if d.InsideOpen(l.ObservedWavelength()) {
				lines = append(lines, l)
			}
		}
	}
	return lines, nil
}

// Lines returns the candidate lines strong enough to matter.
func (e *Engine) Lines(m *fit.Model) ([]fit.SpectralLine, error) {
	candidates, err := e.CandidateLines(m)
	if err != nil {
		return nil, err
	}
	lines := candidates[:0]
	for _, l := range candidates {
		if l.Oscillator()*math.Pow(10, l.N()) > strengthThreshold {
			lines = append(lines, l)
		}
	}
	return lines, nil
}

// OpticalDepth adds the optical depth of line at each wavelength into tau.
func OpticalDepth(line fit.SpectralLine, wavelength, tau []float64) {
	b := line.B()
	rest := line.RestWavelength()
	observed := line.ObservedWavelength()

	tau0 := tauScale * math.Pow(10, line.N()) * line.Oscillator() * rest / b
	a := line.Damping() * rest * dampingScale / (4 * math.Pi * b)

	for i, w := range wavelength {
		u := SpeedOfLight * (w/observed - 1) / b
		tau[i] += tau0 * Voigt(a, u)
	}
}

// EquivalentWidth returns the equivalent width of a single line in pixel
// units, sum(1 - exp(-tau)), without instrumental smoothing.
func EquivalentWidth(line fit.SpectralLine, wavelength []float64) float64 {
	tau := make([]float64, len(wavelength))
	OpticalDepth(line, wavelength, tau)
	for i, t := range tau {
		tau[i] = 1 - math.Exp(-t)
	}
	return floats.Sum(tau)
}

// Absorption applies the lines' optical depth to the continuum and smooths
// the result with the instrument.
func (e *Engine) Absorption(continuum, wavelength []float64, lines []fit.SpectralLine) []float64 {
	tau := make([]float64, len(wavelength))
	for _, l := range lines {
		OpticalDepth(l, wavelength, tau)
	}
	raw := make([]float64, len(wavelength))
	for i := range raw {
		raw[i] = continuum[i] * math.Exp(-tau[i])
	}
	return e.instrument.Convolve(raw)
}

// ChiSquare sums ((flux - absorption) / error)^2 over the samples inside
// regions. Non-finite terms are skipped and counted in masked.
func ChiSquare(flux, errs, absorption, wavelength []float64, regions fit.Regions) (chi2 float64, masked int) {
	for i, w := range wavelength {
		if !regions.Contains(w) {
			continue
		}
		r := (flux[i] - absorption[i]) / errs[i]
		term := r * r
		if math.IsNaN(term) || math.IsInf(term, 0) {
			masked++
			continue
		}
		chi2 += term
	}
	return chi2, masked
}

// Synthesize evaluates the model against its dataset and records the
// chi-square on the model.
func (e *Engine) Synthesize(m *fit.Model) (Synthesis, error) {
	d := m.Dataset()
	if d == nil {
		return Synthesis{}, ErrNoDataset
	}
	wave := d.Wavelength()

	xs, ys := m.ContinuumXY()
	continuum, err := Continuum(wave, xs, ys)
	if err != nil {
		return Synthesis{}, err
	}

	lines, err := e.Lines(m)
	if err != nil {
		return Synthesis{}, err
	}

	absorption := e.Absorption(continuum, wave, lines)
	chi2, masked := ChiSquare(d.Flux(), d.Error(), absorption, wave, m.Regions())
	if masked > 0 {
		e.logger.Debug("non-finite chi-square terms skipped",
			slog.String("dataset", m.DatasetPath()),
			slog.Int("masked", masked),
		)
	}
	m.SetChiSquare(chi2)

	return Synthesis{
		Wavelength: wave,
		Continuum:  continuum,
		Absorption: absorption,
		Lines:      lines,
		ChiSquare:  chi2,
		Masked:     masked,
	}, nil
}

// Evaluate synthesizes the model and returns its chi-square.
func (e *Engine) Evaluate(m *fit.Model) (float64, error) {
	s, err := e.Synthesize(m)
	if err != nil {
		return 0, err
	}
	return s.ChiSquare, nil
}

// UpdateDOF sets the model's pixel count to the number of samples inside
// its regions, and its parameter count to the unlocked attributes of every
// absorber with a detectable line inside the regions.
func (e *Engine) UpdateDOF(m *fit.Model) error {
	d := m.Dataset()
	if d == nil {
		return ErrNoDataset
	}
	wave := d.Wavelength()
	regions := m.Regions()

	params := 0
	for _, a := range m.Absorbers() {
		if a.FullyLocked() {
			continue
		}
		lines, err := a.Lines(e.table)
		if err != nil {
			return fmt.Errorf("update dof: %w", err)
		}
		for _, l := range lines {
			if !regions.Contains(l.ObservedWavelength()) {
				continue
			}
			if EquivalentWidth(l, wave) > EquivalentWidthFloor {
				params += len(a.Unlocked())
				break
			}
		}
	}

	m.SetDOF(regions.Count(wave), params)
	return nil
}
