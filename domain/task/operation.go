package task

import "strings"

// Operation represents the type of task operation.
type Operation string

// Operation values for sweep jobs.
const (
	OperationSweep         Operation = "linefit.sweep"
	OperationSweepAnneal   Operation = "linefit.sweep.anneal"
	OperationSweepExternal Operation = "linefit.sweep.external"
)

// String returns the string representation of the operation.
func (o Operation) String() string {
	return string(o)
}

// IsSweepOperation returns true if this is a per-job sweep operation.
func (o Operation) IsSweepOperation() bool {
	return strings.HasPrefix(string(o), "linefit.sweep.")
}

// SweepOperation returns the job operation for an optimizer name.
// Unknown names map to the empty operation.
func SweepOperation(optimizer string) Operation {
	switch optimizer {
	case "", "anneal":
		return OperationSweepAnneal
	case "external":
		return OperationSweepExternal
	}
	return ""
}

// SweepOperations returns every per-job sweep operation.
// Used at startup to validate that all required handlers are registered.
func SweepOperations() []Operation {
	return []Operation{OperationSweepAnneal, OperationSweepExternal}
}
