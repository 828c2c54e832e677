package external

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/helixml/linefit/domain/fit"
	"github.com/helixml/linefit/infrastructure/fitfile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// quadratic scores a model by the distance of H:N from 15.
type quadratic struct{}

func (quadratic) CandidateLines(*fit.Model) ([]fit.SpectralLine, error) { return nil, nil }

func (quadratic) Evaluate(m *fit.Model) (float64, error) {
	a, ok := m.Absorber("H")
	if !ok {
		return 0, errors.New("no absorber H")
	}
	d := a.N() - 15
	return d * d, nil
}

func (quadratic) UpdateDOF(m *fit.Model) error {
	m.SetDOF(10, 1)
	return nil
}

func testModel(t *testing.T) *fit.Model {
	t.Helper()
	region, err := fit.NewRegion(1210, 1220)
	require.NoError(t, err)
	m, err := fit.NewModel(
		[]fit.Absorber{fit.NewAbsorber("H", "H I", 13, 20, 2.34, fit.WithLocked(fit.AttrZ, true))},
		[]fit.ContinuumPoint{fit.NewContinuumPoint("c0", 1210, 1)},
		[]fit.Region{region},
	)
	require.NoError(t, err)
	return m
}

func helperOptimizer(t *testing.T, mode string, timeout time.Duration) *Optimizer {
	t.Helper()
	t.Setenv("GO_WANT_HELPER_PROCESS", "1")
	o, err := NewOptimizer(quadratic{}, Config{
		Command: os.Args[0],
		Args:    []string{"-test.run=TestHelperProcess", "--", mode, FitPlaceholder},
		Timeout: timeout,
		Dir:     t.TempDir(),
	}, nil)
	require.NoError(t, err)
	return o
}

// TestHelperProcess stands in for the external optimizer.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	defer os.Exit(0)

	args := os.Args
	for len(args) > 0 && args[0] != "--" {
		args = args[1:]
	}
	if len(args) < 3 {
		fmt.Fprintln(os.Stderr, "usage: -- mode fit")
		os.Exit(2)
	}
	mode, path := args[1], args[2]

	switch mode {
	case "candidates":
		buf, err := EncodeCandidates([]Candidate{
			{ChiSquare: 4, Values: map[string]float64{"H:N": 17}},
			{ChiSquare: 0.25, Values: map[string]float64{"H:N": 15.5, "H:z": 9}},
		})
		if err != nil {
			os.Exit(2)
		}
		_, _ = os.Stdout.Write(buf)
	case "rewrite":
		m, err := fitfile.ReadFile(path)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		if err := m.SetParam(fit.NewParameterRef("H", fit.AttrN), 15); err != nil {
			os.Exit(2)
		}
		if err := fitfile.WriteFile(path, m); err != nil {
			os.Exit(2)
		}
	case "fail":
		fmt.Fprintln(os.Stderr, "license server unreachable")
		os.Exit(3)
	case "sleep":
		time.Sleep(10 * time.Second)
	}
}

func TestOptimizer_Candidates(t *testing.T) {
	o := helperOptimizer(t, "candidates", 30*time.Second)
	model := testModel(t)

	result, err := o.Optimize(context.Background(), model)
	require.NoError(t, err)

	a, _ := result.Model.Absorber("H")
	assert.Equal(t, 15.5, a.N())
	assert.Equal(t, 2.34, a.Z(), "locked z must not change")
	assert.InDelta(t, 0.25, result.ChiSquare, 1e-12)
	assert.Equal(t, 9, result.Model.DOF())

	orig, _ := model.Absorber("H")
	assert.Equal(t, 13.0, orig.N(), "input model must not change")
}

func TestOptimizer_RewrittenFile(t *testing.T) {
	o := helperOptimizer(t, "rewrite", 30*time.Second)

	result, err := o.Optimize(context.Background(), testModel(t))
	require.NoError(t, err)

	a, _ := result.Model.Absorber("H")
	assert.Equal(t, 15.0, a.N())
	assert.Zero(t, result.ChiSquare)
}

func TestOptimizer_ExitError(t *testing.T) {
	o := helperOptimizer(t, "fail", 30*time.Second)

	_, err := o.Optimize(context.Background(), testModel(t))
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 3, exitErr.Code)
	assert.True(t, strings.Contains(exitErr.Stderr, "license server unreachable"))
}

func TestOptimizer_Timeout(t *testing.T) {
	o := helperOptimizer(t, "sleep", 200*time.Millisecond)

	_, err := o.Optimize(context.Background(), testModel(t))
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestNewOptimizer_RequiresCommand(t *testing.T) {
	_, err := NewOptimizer(quadratic{}, Config{}, nil)
	assert.ErrorIs(t, err, ErrNoCommand)

	o, err := NewOptimizer(quadratic{}, Config{Command: "true"}, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultTimeout, o.Config().Timeout)
}

func TestBestCandidate(t *testing.T) {
	buf, err := EncodeCandidates([]Candidate{
		{ChiSquare: 3, Values: map[string]float64{"H:N": 1}},
		{ChiSquare: 1, Values: map[string]float64{"H:N": 2}},
		{ChiSquare: 2, Values: map[string]float64{"H:N": 3}},
	})
	require.NoError(t, err)

	best, err := BestCandidate(buf)
	require.NoError(t, err)
	assert.Equal(t, 2.0, best.Values["H:N"])

	empty, err := EncodeCandidates(nil)
	require.NoError(t, err)
	_, err = BestCandidate(empty)
	assert.ErrorIs(t, err, ErrNoCandidates)

	_, err = BestCandidate([]byte("not msgpack"))
	assert.ErrorIs(t, err, ErrBadCandidates)
}

func TestApply_UnknownParameter(t *testing.T) {
	err := Apply(testModel(t), Candidate{Values: map[string]float64{"X:N": 1}})
	assert.ErrorIs(t, err, ErrBadCandidates)
	assert.ErrorIs(t, err, fit.ErrUnknownParameter)
}

func TestApply_UnnamedContinuumPoint(t *testing.T) {
	err := Apply(testModel(t), Candidate{Values: map[string]float64{"unset:y": 1}})
	assert.ErrorIs(t, err, ErrBadCandidates)
}
