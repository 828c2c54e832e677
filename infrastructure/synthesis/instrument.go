package synthesis

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Instrument describes the spectrograph line-spread function.
type Instrument struct {
	// VDisp is the velocity width of one pixel in km/s.
	VDisp float64
	// VSig is the Gaussian line-spread sigma in km/s. Zero disables smoothing.
	VSig float64
	// Shift moves the smoothed spectrum by this many samples.
	Shift int
}

// DefaultInstrument returns the calibrated default instrument.
func DefaultInstrument() Instrument {
	return Instrument{VDisp: 1.3, VSig: 3.0, Shift: 3}
}

// Smooths reports whether the instrument applies a line-spread function.
func (in Instrument) Smooths() bool {
	return in.VSig > 0 && in.VDisp > 0
}

// Kernel returns the normalized Gaussian kernel, centered at index len/2.
func (in Instrument) Kernel() []float64 {
	if !in.Smooths() {
		return []float64{1}
	}
	sigma := in.VSig / in.VDisp
	half := int(6*sigma + 1)
	kernel := make([]float64, 2*half+1)
	for i := range kernel {
		d := float64(i - half)
		kernel[i] = math.Exp(-d * d / (2 * sigma * sigma))
	}
	floats.Scale(1/floats.Sum(kernel), kernel)
	return kernel
}

// Convolve smooths in with the instrument kernel and applies the shift.
// Samples beyond either edge reuse the boundary sample.
func (in Instrument) Convolve(values []float64) []float64 {
	n := len(values)
	out := make([]float64, n)
	if n == 0 {
		return out
	}
	if !in.Smooths() {
		copy(out, values)
		return out
	}

	kernel := in.Kernel()
	half := len(kernel) / 2
	conv := make([]float64, n)
	for i := range conv {
		var acc float64
		for k, w := range kernel {
			acc += w * values[clamp(i+k-half, n)]
		}
		conv[i] = acc
	}
	for i := range out {
		out[i] = conv[clamp(i-in.Shift, n)]
	}
	return out
}

func clamp(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
