// Package spectrum provides the observed one-dimensional spectrum.
package spectrum

import (
	"errors"
	"fmt"
)

// ErrShape indicates mismatched or unusable dataset columns.
var ErrShape = errors.New("invalid spectrum shape")

// Dataset holds observed wavelength, flux and error samples.
// A Dataset is never mutated after construction and may be shared across
// goroutines.
type Dataset struct {
	path       string
	wavelength []float64
	flux       []float64
	error      []float64
}

// NewDataset validates and creates a Dataset. The slices are copied.
func NewDataset(path string, wavelength, flux, errs []float64) (*Dataset, error) {
	if len(wavelength) == 0 {
		return nil, fmt.Errorf("%w: no samples", ErrShape)
	}
	if len(flux) != len(wavelength) || len(errs) != len(wavelength) {
		return nil, fmt.Errorf("%w: %d wavelengths, %d flux, %d error", ErrShape, len(wavelength), len(flux), len(errs))
	}
	for i := 1; i < len(wavelength); i++ {
		if wavelength[i] <= wavelength[i-1] {
			return nil, fmt.Errorf("%w: wavelength not increasing at sample %d", ErrShape, i)
		}
	}
	return &Dataset{
		path:       path,
		wavelength: append([]float64(nil), wavelength...),
		flux:       append([]float64(nil), flux...),
		error:      append([]float64(nil), errs...),
	}, nil
}

// Path returns the file the dataset was loaded from, if any.
func (d *Dataset) Path() string { return d.path }

// Len returns the number of samples.
func (d *Dataset) Len() int { return len(d.wavelength) }

// Wavelength returns the wavelength samples. Callers must not modify the result.
func (d *Dataset) Wavelength() []float64 { return d.wavelength }

// Flux returns the flux samples. Callers must not modify the result.
func (d *Dataset) Flux() []float64 { return d.flux }

// Error returns the one-sigma flux errors. Callers must not modify the result.
func (d *Dataset) Error() []float64 { return d.error }

// Min returns the first wavelength.
func (d *Dataset) Min() float64 { return d.wavelength[0] }

// Max returns the last wavelength.
func (d *Dataset) Max() float64 { return d.wavelength[len(d.wavelength)-1] }

// InsideOpen reports whether w lies strictly inside the sampled range.
func (d *Dataset) InsideOpen(w float64) bool {
	return w > d.Min() && w < d.Max()
}
