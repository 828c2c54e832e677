// Package service provides domain service interfaces.
package service

import (
	"context"

	"github.com/helixml/linefit/domain/fit"
)

// Result is the outcome of one optimization run.
type Result struct {
	Model       *fit.Model
	ChiSquare   float64
	Iterations  int
	Accepted    int
	Rejected    int
	Temperature float64
	Diagnostics []fit.Diagnostic
}

// Optimizer adjusts the free parameters of a model to minimize chi-square.
// The input model is not modified; Result.Model is a new model.
type Optimizer interface {
	Optimize(ctx context.Context, model *fit.Model, opts ...OptimizeOption) (Result, error)
}

// Synthesizer evaluates a model against its observed dataset.
type Synthesizer interface {
	// CandidateLines returns every line the model's absorbers place inside
	// the observed range, including lines too weak to contribute.
	CandidateLines(model *fit.Model) ([]fit.SpectralLine, error)

	// Evaluate synthesizes the model spectrum, records the chi-square on the
	// model and returns it.
	Evaluate(model *fit.Model) (float64, error)

	// UpdateDOF recomputes the pixel and free-parameter counts.
	UpdateDOF(model *fit.Model) error
}
