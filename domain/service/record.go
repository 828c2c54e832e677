package service

import (
	"context"
	"sort"
	"strconv"

	"github.com/helixml/linefit/domain/fit"
)

// ChiSquareColumn is the first column of every result record.
const ChiSquareColumn = "chi2"

// Record is one flattened model: the chi-square followed by each continuum
// point's x and y, ordered by point id, and each absorber's ion name, N, b
// and z in model order. Column order does not depend on continuum x, so
// records of one sweep share a header.
type Record struct {
	runID     string
	job       string
	chiSquare float64
	columns   []string
	values    []string
}

// NewRecord flattens a model into a Record.
func NewRecord(m *fit.Model) Record {
	columns := []string{ChiSquareColumn}
	values := []string{formatFloat(m.ChiSquare())}

	points := m.ContinuumPoints()
	sort.SliceStable(points, func(i, j int) bool { return points[i].ID() < points[j].ID() })
	for _, c := range points {
		columns = append(columns,
			fit.NewParameterRef(c.ID(), fit.AttrX).Column(),
			fit.NewParameterRef(c.ID(), fit.AttrY).Column(),
		)
		values = append(values, formatFloat(c.X()), formatFloat(c.Y()))
	}
	for _, a := range m.Absorbers() {
		columns = append(columns,
			a.ID()+"_ionName",
			fit.NewParameterRef(a.ID(), fit.AttrN).Column(),
			fit.NewParameterRef(a.ID(), fit.AttrB).Column(),
			fit.NewParameterRef(a.ID(), fit.AttrZ).Column(),
		)
		values = append(values, a.Ion(), formatFloat(a.N()), formatFloat(a.B()), formatFloat(a.Z()))
	}

	return Record{
		chiSquare: m.ChiSquare(),
		columns:   columns,
		values:    values,
	}
}

// NewRecordFromColumns rebuilds a Record from stored columns and values.
func NewRecordFromColumns(runID, job string, chiSquare float64, columns, values []string) Record {
	c := make([]string, len(columns))
	copy(c, columns)
	v := make([]string, len(values))
	copy(v, values)
	return Record{runID: runID, job: job, chiSquare: chiSquare, columns: c, values: v}
}

// RunID returns the sweep run that produced the record, if any.
func (r Record) RunID() string { return r.runID }

// Job returns the sweep job name, if any.
func (r Record) Job() string { return r.job }

// ChiSquare returns the recorded chi-square.
func (r Record) ChiSquare() float64 { return r.chiSquare }

// Columns returns a copy of the column names.
func (r Record) Columns() []string {
	result := make([]string, len(r.columns))
	copy(result, r.columns)
	return result
}

// Values returns a copy of the formatted values.
func (r Record) Values() []string {
	result := make([]string, len(r.values))
	copy(result, r.values)
	return result
}

// WithJob returns a copy of the record tagged with a run ID and job name.
func (r Record) WithJob(runID, job string) Record {
	r.runID = runID
	r.job = job
	return r
}

// ResultSink appends optimized models to an output.
type ResultSink interface {
	Append(ctx context.Context, record Record) error
}

// ResultStore persists sweep records.
type ResultStore interface {
	ResultSink

	// ForRun returns every record stored for a sweep run.
	ForRun(ctx context.Context, runID string) ([]Record, error)

	// DeleteRun removes every record stored for a sweep run.
	DeleteRun(ctx context.Context, runID string) error
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
