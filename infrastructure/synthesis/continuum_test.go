package synthesis

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContinuum(t *testing.T) {
	tests := []struct {
		name    string
		xs, ys  []float64
		wave    []float64
		want    []float64
		wantErr error
	}{
		{
			name: "two points",
			xs:   []float64{1000, 1100},
			ys:   []float64{1, 2},
			wave: []float64{900, 1000, 1050, 1100, 1200},
			want: []float64{1, 1, 1.5, 2, 2},
		},
		{
			name: "unsorted input",
			xs:   []float64{1100, 1000},
			ys:   []float64{2, 1},
			wave: []float64{1025},
			want: []float64{1.25},
		},
		{
			name: "single point is flat",
			xs:   []float64{1000},
			ys:   []float64{0.7},
			wave: []float64{1, 1000, 5000},
			want: []float64{0.7, 0.7, 0.7},
		},
		{name: "no points", wave: []float64{1}, wantErr: ErrNoContinuum},
		{name: "length mismatch", xs: []float64{1, 2}, ys: []float64{1}, wantErr: ErrContinuumShape},
		{name: "duplicate x", xs: []float64{1, 1}, ys: []float64{1, 2}, wantErr: ErrContinuumShape},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Continuum(tt.wave, tt.xs, tt.ys)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.InDeltaSlice(t, tt.want, got, 1e-12)
		})
	}
}

func TestContinuum_Linearity(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))

	for trial := 0; trial < 50; trial++ {
		n := 2 + rng.IntN(6)
		xs := make([]float64, n)
		ys := make([]float64, n)
		x := 1000.0
		for i := range xs {
			x += 1 + rng.Float64()*50
			xs[i] = x
			ys[i] = rng.Float64() * 2
		}

		mids := make([]float64, n-1)
		for i := range mids {
			mids[i] = (xs[i] + xs[i+1]) / 2
		}
		got, err := Continuum(mids, xs, ys)
		require.NoError(t, err)

		for i := range mids {
			assert.InDelta(t, (ys[i]+ys[i+1])/2, got[i], 1e-9)
		}
	}
}
