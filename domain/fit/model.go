package fit

import (
	"fmt"
	"sort"

	"github.com/helixml/linefit/domain/spectrum"
)

// Auxiliary is an opaque record carried alongside a fit (for example a plot
// view). It is round-tripped unchanged.
type Auxiliary struct {
	Name  string
	Attrs []AuxiliaryAttr
	Inner string
}

// AuxiliaryAttr is one attribute of an Auxiliary record.
type AuxiliaryAttr struct {
	Name  string
	Value string
}

// Model owns the absorbers, continuum points and regions of one fit along
// with its chi-square and degrees-of-freedom bookkeeping. The observed
// dataset is referenced, not owned.
type Model struct {
	absorbers   []Absorber
	continuum   []ContinuumPoint
	regions     Regions
	chiSquare   float64
	pixels      int
	params      int
	datasetPath string
	dataset     *spectrum.Dataset
	auxiliary   []Auxiliary
}

// ModelOption configures a Model at construction.
type ModelOption func(*Model)

// WithDataset attaches the observed dataset and the path it was read from.
func WithDataset(path string, d *spectrum.Dataset) ModelOption {
	return func(m *Model) {
		m.datasetPath = path
		m.dataset = d
	}
}

// WithDatasetPath records the dataset path without loading it.
func WithDatasetPath(path string) ModelOption {
	return func(m *Model) { m.datasetPath = path }
}

// WithSummary sets the persisted chi-square, pixel and parameter counts.
func WithSummary(chiSquare float64, pixels, params int) ModelOption {
	return func(m *Model) {
		m.chiSquare = chiSquare
		m.pixels = pixels
		m.params = params
	}
}

// WithAuxiliary attaches opaque records.
func WithAuxiliary(records ...Auxiliary) ModelOption {
	return func(m *Model) { m.auxiliary = append(m.auxiliary, records...) }
}

// NewModel builds a Model. Regions are consolidated, continuum points are
// sorted by x, and empty absorber ids are defaulted. Absorber ids must be
// unique, as must continuum point ids other than UnsetID.
func NewModel(absorbers []Absorber, continuum []ContinuumPoint, regions []Region, opts ...ModelOption) (*Model, error) {
	m := &Model{
		absorbers: make([]Absorber, len(absorbers)),
		continuum: make([]ContinuumPoint, len(continuum)),
		regions:   ConsolidateRegions(regions),
	}
	copy(m.absorbers, absorbers)
	copy(m.continuum, continuum)

	seen := make(map[string]struct{}, len(m.absorbers))
	for i := range m.absorbers {
		a := &m.absorbers[i]
		if a.id == "" {
			a.id = defaultAbsorberID(a.ion, i)
		}
		if _, dup := seen[a.id]; dup {
			return nil, fmt.Errorf("%w: absorber %q", ErrDuplicateID, a.id)
		}
		seen[a.id] = struct{}{}
	}

	points := make(map[string]struct{}, len(m.continuum))
	for _, c := range m.continuum {
		if c.id == UnsetID {
			continue
		}
		if _, dup := points[c.id]; dup {
			return nil, fmt.Errorf("%w: continuum point %q", ErrDuplicateID, c.id)
		}
		points[c.id] = struct{}{}
	}
	m.sortContinuum()

	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Absorbers returns a copy of the absorbers.
func (m *Model) Absorbers() []Absorber {
	result := make([]Absorber, len(m.absorbers))
	copy(result, m.absorbers)
	return result
}

// NumAbsorbers returns the number of absorbers.
func (m *Model) NumAbsorbers() int { return len(m.absorbers) }

// AbsorberAt returns the i-th absorber for in-place mutation.
func (m *Model) AbsorberAt(i int) *Absorber { return &m.absorbers[i] }

// Absorber finds an absorber by id for in-place mutation.
func (m *Model) Absorber(id string) (*Absorber, bool) {
	for i := range m.absorbers {
		if m.absorbers[i].id == id {
			return &m.absorbers[i], true
		}
	}
	return nil, false
}

// ContinuumPoints returns a copy of the continuum points, sorted by x.
func (m *Model) ContinuumPoints() []ContinuumPoint {
	result := make([]ContinuumPoint, len(m.continuum))
	copy(result, m.continuum)
	return result
}

// NumContinuumPoints returns the number of continuum points.
func (m *Model) NumContinuumPoints() int { return len(m.continuum) }

// ContinuumAt returns the i-th continuum point for in-place mutation.
func (m *Model) ContinuumAt(i int) *ContinuumPoint { return &m.continuum[i] }

// ContinuumPoint finds a continuum point by id for in-place mutation.
func (m *Model) ContinuumPoint(id string) (*ContinuumPoint, bool) {
	for i := range m.continuum {
		if m.continuum[i].id == id {
			return &m.continuum[i], true
		}
	}
	return nil, false
}

// ContinuumXY returns the continuum x and y values in x order.
func (m *Model) ContinuumXY() ([]float64, []float64) {
	xs := make([]float64, len(m.continuum))
	ys := make([]float64, len(m.continuum))
	for i, c := range m.continuum {
		xs[i] = c.x.Value
		ys[i] = c.y.Value
	}
	return xs, ys
}

// Regions returns the consolidated regions.
func (m *Model) Regions() Regions {
	result := make(Regions, len(m.regions))
	copy(result, m.regions)
	return result
}

// ChiSquare returns the last computed chi-square.
func (m *Model) ChiSquare() float64 { return m.chiSquare }

// SetChiSquare records a computed chi-square.
func (m *Model) SetChiSquare(v float64) { m.chiSquare = v }

// Pixels returns the number of samples inside the regions.
func (m *Model) Pixels() int { return m.pixels }

// Params returns the number of free parameters.
func (m *Model) Params() int { return m.params }

// SetDOF records the pixel and free-parameter counts.
func (m *Model) SetDOF(pixels, params int) {
	m.pixels = pixels
	m.params = params
}

// DOF returns pixels - params.
func (m *Model) DOF() int { return m.pixels - m.params }

// Dataset returns the referenced observed dataset, which may be nil.
func (m *Model) Dataset() *spectrum.Dataset { return m.dataset }

// DatasetPath returns the path of the observed dataset.
func (m *Model) DatasetPath() string { return m.datasetPath }

// SetDataset attaches an observed dataset.
func (m *Model) SetDataset(path string, d *spectrum.Dataset) {
	m.datasetPath = path
	m.dataset = d
}

// Auxiliary returns a copy of the opaque auxiliary records.
func (m *Model) Auxiliary() []Auxiliary {
	result := make([]Auxiliary, len(m.auxiliary))
	copy(result, m.auxiliary)
	return result
}

// Copy deep-copies the owned sequences and shares the dataset reference.
func (m *Model) Copy() *Model {
	c := *m
	c.absorbers = make([]Absorber, len(m.absorbers))
	copy(c.absorbers, m.absorbers)
	c.continuum = make([]ContinuumPoint, len(m.continuum))
	copy(c.continuum, m.continuum)
	c.regions = make(Regions, len(m.regions))
	copy(c.regions, m.regions)
	c.auxiliary = make([]Auxiliary, len(m.auxiliary))
	copy(c.auxiliary, m.auxiliary)
	return &c
}

// Restore overwrites this model's values from src without reallocating.
// Both models must share the same shape (as produced by Copy).
func (m *Model) Restore(src *Model) {
	if len(m.absorbers) != len(src.absorbers) || len(m.continuum) != len(src.continuum) {
		*m = *src.Copy()
		return
	}
	copy(m.absorbers, src.absorbers)
	copy(m.continuum, src.continuum)
	m.chiSquare = src.chiSquare
	m.pixels = src.pixels
	m.params = src.params
}

// Param returns the parameter addressed by ref.
func (m *Model) Param(ref ParameterRef) (Param, error) {
	if ref.Attribute.IsAbsorber() {
		if a, ok := m.Absorber(ref.Entity); ok {
			p, _ := a.Param(ref.Attribute)
			return p, nil
		}
	}
	if ref.Attribute.IsContinuum() {
		if c, ok := m.ContinuumPoint(ref.Entity); ok {
			p, _ := c.Param(ref.Attribute)
			return p, nil
		}
	}
	return Param{}, fmt.Errorf("%w: %s", ErrUnknownParameter, ref)
}

// SetParam sets the value addressed by ref. Setting a continuum x keeps the
// points sorted.
func (m *Model) SetParam(ref ParameterRef, v float64) error {
	if ref.Attribute.IsAbsorber() {
		if a, ok := m.Absorber(ref.Entity); ok {
			a.SetValue(ref.Attribute, v)
			return nil
		}
	}
	if ref.Attribute.IsContinuum() {
		if c, ok := m.ContinuumPoint(ref.Entity); ok {
			c.SetValue(ref.Attribute, v)
			if ref.Attribute == AttrX {
				m.sortContinuum()
			}
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownParameter, ref)
}

// SetLocked sets the lock flag addressed by ref.
func (m *Model) SetLocked(ref ParameterRef, locked bool) error {
	if ref.Attribute.IsAbsorber() {
		if a, ok := m.Absorber(ref.Entity); ok {
			a.SetLocked(ref.Attribute, locked)
			return nil
		}
	}
	if ref.Attribute.IsContinuum() {
		if c, ok := m.ContinuumPoint(ref.Entity); ok {
			c.SetLocked(ref.Attribute, locked)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownParameter, ref)
}

func (m *Model) sortContinuum() {
	sort.SliceStable(m.continuum, func(i, j int) bool {
		return m.continuum[i].x.Value < m.continuum[j].x.Value
	})
}
