package fit

import (
	"fmt"
	"strings"

	"github.com/helixml/linefit/domain/atomic"
)

// Physical limits for absorber parameters.
const (
	MinColumnDensity = 8.0
	MaxColumnDensity = 25.0
	MinDoppler       = 0.1
	MaxDoppler       = 120.0
)

// Absorber is an intervening cloud parameterized by column density N
// (log10 cm^-2), Doppler parameter b (km/s) and redshift z.
type Absorber struct {
	id  string
	ion string
	n   Param
	b   Param
	z   Param
}

// AbsorberOption configures an Absorber at construction.
type AbsorberOption func(*Absorber)

// WithLocked sets the lock flag of an attribute.
func WithLocked(attr Attribute, locked bool) AbsorberOption {
	return func(a *Absorber) {
		if p := a.param(attr); p != nil {
			p.Locked = locked
		}
	}
}

// WithError sets the uncertainty of an attribute.
func WithError(attr Attribute, v float64) AbsorberOption {
	return func(a *Absorber) {
		if p := a.param(attr); p != nil {
			p.Error = v
		}
	}
}

// NewAbsorber creates an Absorber. All attributes start unlocked.
func NewAbsorber(id, ion string, n, b, z float64, opts ...AbsorberOption) Absorber {
	a := Absorber{
		id:  id,
		ion: ion,
		n:   Param{Value: n},
		b:   Param{Value: b},
		z:   Param{Value: z},
	}
	for _, opt := range opts {
		opt(&a)
	}
	return a
}

// ID returns the absorber id.
func (a Absorber) ID() string { return a.id }

// Ion returns the ion name.
func (a Absorber) Ion() string { return a.ion }

// N returns the log10 column density.
func (a Absorber) N() float64 { return a.n.Value }

// B returns the Doppler parameter in km/s.
func (a Absorber) B() float64 { return a.b.Value }

// Z returns the redshift.
func (a Absorber) Z() float64 { return a.z.Value }

// Param returns an attribute's parameter.
func (a Absorber) Param(attr Attribute) (Param, bool) {
	p := a.param(attr)
	if p == nil {
		return Param{}, false
	}
	return *p, true
}

// SetValue sets an attribute value in place. It reports false for
// non-absorber attributes.
func (a *Absorber) SetValue(attr Attribute, v float64) bool {
	p := a.param(attr)
	if p == nil {
		return false
	}
	p.Value = v
	return true
}

// SetLocked sets an attribute's lock flag in place.
func (a *Absorber) SetLocked(attr Attribute, locked bool) bool {
	p := a.param(attr)
	if p == nil {
		return false
	}
	p.Locked = locked
	return true
}

// SetError sets an attribute's uncertainty in place.
func (a *Absorber) SetError(attr Attribute, v float64) bool {
	p := a.param(attr)
	if p == nil {
		return false
	}
	p.Error = v
	return true
}

// FullyLocked reports whether N, b and z are all locked.
func (a Absorber) FullyLocked() bool {
	return a.n.Locked && a.b.Locked && a.z.Locked
}

// Unlocked returns the unlocked attributes in canonical order.
func (a Absorber) Unlocked() []Attribute {
	var attrs []Attribute
	for _, attr := range AbsorberAttributes {
		if !a.param(attr).Locked {
			attrs = append(attrs, attr)
		}
	}
	return attrs
}

// Equal reports whether two absorbers share id, ion and N, b, z values.
func (a Absorber) Equal(o Absorber) bool {
	return a.id == o.id &&
		a.ion == o.ion &&
		a.n.Value == o.n.Value &&
		a.b.Value == o.b.Value &&
		a.z.Value == o.z.Value
}

// Lines derives the spectral lines of this absorber from the atomic table.
func (a Absorber) Lines(table *atomic.Table) ([]SpectralLine, error) {
	transitions, err := table.Transitions(a.ion)
	if err != nil {
		return nil, fmt.Errorf("absorber %s: %w", a.id, err)
	}
	lines := make([]SpectralLine, len(transitions))
	for i, t := range transitions {
		lines[i] = newSpectralLine(a, t)
	}
	return lines, nil
}

func (a *Absorber) param(attr Attribute) *Param {
	switch attr {
	case AttrN:
		return &a.n
	case AttrB:
		return &a.b
	case AttrZ:
		return &a.z
	}
	return nil
}

// defaultAbsorberID builds an id from the ion name and position.
func defaultAbsorberID(ion string, index int) string {
	return fmt.Sprintf("%s_%d", strings.ReplaceAll(ion, " ", ""), index)
}
