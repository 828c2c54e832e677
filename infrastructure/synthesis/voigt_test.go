package synthesis

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVoigt_Center(t *testing.T) {
	assert.InDelta(t, 1.0, Voigt(0, 0), 1e-6)
}

func TestVoigt_GaussianLimit(t *testing.T) {
	for _, u := range []float64{0.25, 0.5, 1, 1.5, 2, 3, 4, 6, 20} {
		assert.InDelta(t, math.Exp(-u*u), Voigt(0, u), 2e-4, "u=%g", u)
	}
}

func TestVoigt_Symmetric(t *testing.T) {
	for _, a := range []float64{0, 1e-3, 0.1, 1, 10} {
		for _, u := range []float64{0.3, 2, 5, 7, 16} {
			assert.InDelta(t, Voigt(a, u), Voigt(a, -u), 1e-12, "a=%g u=%g", a, u)
		}
	}
}

func TestVoigt_LorentzWings(t *testing.T) {
	// Far from the core, H(a,u) approaches a / (sqrt(pi) u^2).
	a, u := 0.01, 50.0
	want := a / (math.Sqrt(math.Pi) * u * u)
	assert.InEpsilon(t, want, Voigt(a, u), 1e-2)
}

func TestVoigt_Positive(t *testing.T) {
	for _, a := range []float64{0.01, 0.5, 3} {
		for u := -20.0; u <= 20; u += 0.37 {
			assert.Greater(t, Voigt(a, u), 0.0, "a=%g u=%g", a, u)
		}
	}
}
