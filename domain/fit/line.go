package fit

import "github.com/helixml/linefit/domain/atomic"

// SpectralLine is one transition of an absorber, carrying a snapshot of the
// absorber's N, b and z taken when the line was derived.
type SpectralLine struct {
	absorberID string
	ion        string
	rest       float64
	oscillator float64
	damping    float64
	n          float64
	b          float64
	z          float64
}

func newSpectralLine(a Absorber, t atomic.Transition) SpectralLine {
	return SpectralLine{
		absorberID: a.id,
		ion:        t.Ion(),
		rest:       t.Wavelength(),
		oscillator: t.Oscillator(),
		damping:    t.Damping(),
		n:          a.n.Value,
		b:          a.b.Value,
		z:          a.z.Value,
	}
}

// NewSpectralLine creates a line directly from its parameters.
func NewSpectralLine(absorberID, ion string, rest, oscillator, damping, n, b, z float64) SpectralLine {
	return SpectralLine{
		absorberID: absorberID,
		ion:        ion,
		rest:       rest,
		oscillator: oscillator,
		damping:    damping,
		n:          n,
		b:          b,
		z:          z,
	}
}

// AbsorberID returns the owning absorber's id.
func (l SpectralLine) AbsorberID() string { return l.absorberID }

// Ion returns the ion name.
func (l SpectralLine) Ion() string { return l.ion }

// RestWavelength returns the rest wavelength in Angstrom.
func (l SpectralLine) RestWavelength() float64 { return l.rest }

// Oscillator returns the oscillator strength.
func (l SpectralLine) Oscillator() float64 { return l.oscillator }

// Damping returns the damping constant in s^-1.
func (l SpectralLine) Damping() float64 { return l.damping }

// N returns the log10 column density.
func (l SpectralLine) N() float64 { return l.n }

// B returns the Doppler parameter in km/s.
func (l SpectralLine) B() float64 { return l.b }

// Z returns the redshift.
func (l SpectralLine) Z() float64 { return l.z }

// ObservedWavelength returns rest * (1 + z).
func (l SpectralLine) ObservedWavelength() float64 {
	return l.rest * (1 + l.z)
}
