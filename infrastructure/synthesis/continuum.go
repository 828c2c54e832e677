package synthesis

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/interp"
)

// Continuum configuration errors.
var (
	ErrNoContinuum    = errors.New("no continuum points")
	ErrContinuumShape = errors.New("continuum points malformed")
)

// Continuum evaluates the piecewise-linear continuum through (xs, ys) at each
// wavelength. Values outside the outermost points are held constant and a
// single point gives a flat continuum.
func Continuum(wavelength, xs, ys []float64) ([]float64, error) {
	if len(xs) == 0 {
		return nil, ErrNoContinuum
	}
	if len(xs) != len(ys) {
		return nil, fmt.Errorf("%w: %d x values, %d y values", ErrContinuumShape, len(xs), len(ys))
	}

	out := make([]float64, len(wavelength))
	if len(xs) == 1 {
		for i := range out {
			out[i] = ys[0]
		}
		return out, nil
	}

	px, py := sortedPoints(xs, ys)
	for i := 1; i < len(px); i++ {
		if px[i] == px[i-1] {
			return nil, fmt.Errorf("%w: duplicate x %g", ErrContinuumShape, px[i])
		}
	}

	var pl interp.PiecewiseLinear
	if err := pl.Fit(px, py); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrContinuumShape, err)
	}
	for i, w := range wavelength {
		out[i] = pl.Predict(w)
	}
	return out, nil
}

func sortedPoints(xs, ys []float64) ([]float64, []float64) {
	idx := make([]int, len(xs))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool { return xs[idx[i]] < xs[idx[j]] })

	px := make([]float64, len(xs))
	py := make([]float64, len(ys))
	for i, k := range idx {
		px[i] = xs[k]
		py[i] = ys[k]
	}
	return px, py
}
