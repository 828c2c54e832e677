package anneal

import (
	"context"
	"math"
	"sync"
	"testing"

	"github.com/helixml/linefit/domain/atomic"
	"github.com/helixml/linefit/domain/fit"
	"github.com/helixml/linefit/domain/service"
	"github.com/helixml/linefit/domain/spectrum"
	"github.com/helixml/linefit/infrastructure/synthesis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// quadratic scores a model by its distance from N=15, b=20, z=2 and y=1.
type quadratic struct{}

func (quadratic) CandidateLines(m *fit.Model) ([]fit.SpectralLine, error) {
	var lines []fit.SpectralLine
	for _, a := range m.Absorbers() {
		lines = append(lines, fit.NewSpectralLine(a.ID(), a.Ion(), 1000, 0.4, 1e8, a.N(), a.B(), a.Z()))
	}
	return lines, nil
}

func (quadratic) Evaluate(m *fit.Model) (float64, error) {
	var chi float64
	for _, a := range m.Absorbers() {
		chi += sq((a.N()-15)/0.1) + sq((a.B()-20)/2) + sq((a.Z()-2)/1e-4)
	}
	for _, c := range m.ContinuumPoints() {
		chi += sq((c.Y() - 1) / 0.01)
	}
	m.SetChiSquare(chi)
	return chi, nil
}

func (quadratic) UpdateDOF(m *fit.Model) error {
	params := 0
	for _, a := range m.Absorbers() {
		params += len(a.Unlocked())
	}
	m.SetDOF(100, params)
	return nil
}

func sq(v float64) float64 { return v * v }

type memorySink struct {
	mu      sync.Mutex
	records []service.Record
}

func (s *memorySink) Append(_ context.Context, r service.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, r)
	return nil
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.MaxTotalIterations = 3000
	cfg.Seed = 11
	return cfg
}

func testModel(t *testing.T, absorbers ...fit.Absorber) *fit.Model {
	t.Helper()
	region, err := fit.NewRegion(2500, 3500)
	require.NoError(t, err)
	m, err := fit.NewModel(
		absorbers,
		[]fit.ContinuumPoint{
			fit.NewContinuumPoint("c0", 2600, 1.02),
			fit.NewContinuumPoint("c1", 4000, 1.5),
		},
		[]fit.Region{region},
	)
	require.NoError(t, err)
	return m
}

func newTestOptimizer(t *testing.T, cfg Config) *Optimizer {
	t.Helper()
	o, err := NewOptimizer(quadratic{}, cfg, nil)
	require.NoError(t, err)
	return o
}

func TestOptimizer_Improves(t *testing.T) {
	o := newTestOptimizer(t, testConfig())
	m := testModel(t, fit.NewAbsorber("H", "H I", 14.5, 25, 2.0002))
	initial, err := quadratic{}.Evaluate(m.Copy())
	require.NoError(t, err)

	result, err := o.Optimize(context.Background(), m)
	require.NoError(t, err)

	assert.Less(t, result.ChiSquare, initial)
	assert.Equal(t, result.ChiSquare, result.Model.ChiSquare())
	assert.Positive(t, result.Iterations)
	assert.Equal(t, result.Iterations, result.Accepted+result.Rejected)
	assert.Equal(t, 97, result.Model.DOF())
	assert.Empty(t, result.Diagnostics)
}

func TestOptimizer_LockedParametersUnchanged(t *testing.T) {
	o := newTestOptimizer(t, testConfig())
	m := testModel(t, fit.NewAbsorber("H", "H I", 14.5, 25, 2.0002, fit.WithLocked(fit.AttrN, true)))
	m.ContinuumAt(0).SetLocked(fit.AttrY, true)

	result, err := o.Optimize(context.Background(), m)
	require.NoError(t, err)

	got := result.Model.AbsorberAt(0)
	assert.Equal(t, 14.5, got.N(), "locked N must be bit-for-bit unchanged")
	assert.NotEqual(t, 25.0, got.B())
	assert.NotEqual(t, 2.0002, got.Z())
	assert.Equal(t, 1.02, result.Model.ContinuumAt(0).Y())

	assert.Equal(t, 25.0, m.AbsorberAt(0).B(), "input model is not modified")
}

func TestOptimizer_InactiveAbsorberUntouched(t *testing.T) {
	o := newTestOptimizer(t, testConfig())
	m := testModel(t,
		fit.NewAbsorber("H", "H I", 14.5, 25, 2.0002),
		fit.NewAbsorber("far", "H I", 13, 30, 5),
	)

	result, err := o.Optimize(context.Background(), m)
	require.NoError(t, err)

	far, ok := result.Model.Absorber("far")
	require.True(t, ok)
	assert.True(t, far.Equal(fit.NewAbsorber("far", "H I", 13, 30, 5)))
	assert.Equal(t, 1.5, result.Model.ContinuumAt(1).Y(), "continuum outside the regions is not perturbed")
}

func TestOptimizer_WeakAbsorberStaysActive(t *testing.T) {
	table := atomic.NewTable([]atomic.Transition{
		atomic.NewTransition("H I", 1215.67, 0.4164, 6.265e8),
	})
	n := 200
	wave := make([]float64, n)
	flux := make([]float64, n)
	errs := make([]float64, n)
	for i := range wave {
		wave[i] = 3600 + 0.5*float64(i)
		flux[i] = 1
		errs[i] = 0.05
	}
	d, err := spectrum.NewDataset("flat.dat", wave, flux, errs)
	require.NoError(t, err)
	region, err := fit.NewRegion(3620, 3669.5)
	require.NoError(t, err)
	m, err := fit.NewModel(
		[]fit.Absorber{
			fit.NewAbsorber("weak", "H I", 10, 20, 2.0),
			fit.NewAbsorber("outside", "H I", 14, 20, 1.0),
		},
		[]fit.ContinuumPoint{fit.NewContinuumPoint("c0", 3600, 1)},
		[]fit.Region{region},
		fit.WithDataset("flat.dat", d),
	)
	require.NoError(t, err)

	engine := synthesis.NewEngine(table, synthesis.DefaultInstrument(), nil)
	lines, err := engine.Lines(m)
	require.NoError(t, err)
	require.Empty(t, lines, "N=10 is below the strength cut")

	o, err := NewOptimizer(engine, testConfig(), nil)
	require.NoError(t, err)
	active, err := o.activeAbsorbers(m)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"weak": true}, active)
}

func TestOptimizer_Deterministic(t *testing.T) {
	o := newTestOptimizer(t, testConfig())
	m := testModel(t, fit.NewAbsorber("H", "H I", 14.5, 25, 2.0002))

	first, err := o.Optimize(context.Background(), m)
	require.NoError(t, err)
	second, err := o.Optimize(context.Background(), m)
	require.NoError(t, err)
	third, err := o.Optimize(context.Background(), m, service.WithSeed(99))
	require.NoError(t, err)

	assert.Equal(t, first.ChiSquare, second.ChiSquare)
	assert.True(t, first.Model.AbsorberAt(0).Equal(*second.Model.AbsorberAt(0)))
	assert.NotEqual(t, first.ChiSquare, third.ChiSquare)
}

func TestOptimizer_CancelledContext(t *testing.T) {
	o := newTestOptimizer(t, testConfig())
	m := testModel(t, fit.NewAbsorber("H", "H I", 14.5, 25, 2.0002))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := o.Optimize(ctx, m)

	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, result.Model)
	assert.Zero(t, result.Iterations)
	assert.True(t, result.Model.AbsorberAt(0).Equal(*m.AbsorberAt(0)))
}

func TestOptimizer_SinkAndProgress(t *testing.T) {
	cfg := testConfig()
	cfg.MaxTotalIterations = 50
	o := newTestOptimizer(t, cfg)
	m := testModel(t, fit.NewAbsorber("H", "H I", 14.5, 25, 2.0002))
	sink := &memorySink{}

	calls := 0
	lastBest := math.Inf(1)
	result, err := o.Optimize(context.Background(), m,
		service.WithSink(sink),
		service.WithProgress(func(_ int, chi2, _ float64) {
			calls++
			assert.LessOrEqual(t, chi2, lastBest, "best chi-square never increases")
			lastBest = chi2
		}),
	)
	require.NoError(t, err)

	assert.Equal(t, result.Iterations, calls)
	require.Len(t, sink.records, 1)
	assert.Equal(t, result.ChiSquare, sink.records[0].ChiSquare())
}

func TestOptimizer_Diagnostics(t *testing.T) {
	cfg := testConfig()
	cfg.MaxTotalIterations = 1
	o := newTestOptimizer(t, cfg)
	m := testModel(t, fit.NewAbsorber("H", "H I", 30, 25, 2.0002, fit.WithLocked(fit.AttrN, true)))

	result, err := o.Optimize(context.Background(), m)
	require.NoError(t, err)

	require.Len(t, result.Diagnostics, 1)
	assert.Equal(t, fit.SeverityUnphysical, result.Diagnostics[0].Severity)
}

func TestOptimizer_UnknownTie(t *testing.T) {
	cfg := testConfig().WithTies([]Tie{{
		A: fit.NewParameterRef("H", fit.AttrZ),
		B: fit.NewParameterRef("missing", fit.AttrZ),
	}})
	o := newTestOptimizer(t, cfg)

	_, err := o.Optimize(context.Background(), testModel(t, fit.NewAbsorber("H", "H I", 15, 20, 2)))
	assert.ErrorIs(t, err, fit.ErrUnknownParameter)
}

func TestNewOptimizer_Validation(t *testing.T) {
	_, err := NewOptimizer(nil, DefaultConfig(), nil)
	assert.Error(t, err)

	cfg := DefaultConfig()
	cfg.CoolingRate = 1
	_, err = NewOptimizer(quadratic{}, cfg, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
