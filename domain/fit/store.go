package fit

import (
	"context"
	"time"

	"github.com/helixml/linefit/domain/repository"
)

// Summary describes a stored model without loading it.
type Summary struct {
	id          int64
	name        string
	datasetPath string
	chiSquare   float64
	pixels      int
	params      int
	absorbers   int
	createdAt   time.Time
}

// NewSummary creates a Summary.
func NewSummary(id int64, name, datasetPath string, chiSquare float64, pixels, params, absorbers int, createdAt time.Time) Summary {
	return Summary{
		id:          id,
		name:        name,
		datasetPath: datasetPath,
		chiSquare:   chiSquare,
		pixels:      pixels,
		params:      params,
		absorbers:   absorbers,
		createdAt:   createdAt,
	}
}

// ID returns the store id.
func (s Summary) ID() int64 { return s.id }

// Name returns the name the model was stored under.
func (s Summary) Name() string { return s.name }

// DatasetPath returns the model's dataset path.
func (s Summary) DatasetPath() string { return s.datasetPath }

// ChiSquare returns the stored chi-square.
func (s Summary) ChiSquare() float64 { return s.chiSquare }

// Pixels returns the stored in-region pixel count.
func (s Summary) Pixels() int { return s.pixels }

// Params returns the stored free-parameter count.
func (s Summary) Params() int { return s.params }

// DOF returns pixels - params.
func (s Summary) DOF() int { return s.pixels - s.params }

// Absorbers returns the number of absorbers.
func (s Summary) Absorbers() int { return s.absorbers }

// CreatedAt returns when the model was stored.
func (s Summary) CreatedAt() time.Time { return s.createdAt }

// Store persists many models.
type Store interface {
	// Save stores a model under name and returns its id.
	Save(ctx context.Context, name string, m *Model) (int64, error)

	// SaveAll stores models under the matching names in one transaction and
	// returns their ids in order. Nothing is stored if any save fails.
	SaveAll(ctx context.Context, names []string, models []*Model) ([]int64, error)

	// Get loads one model.
	Get(ctx context.Context, id int64) (*Model, error)

	// List returns summaries matching the options.
	List(ctx context.Context, options ...repository.Option) ([]Summary, error)

	// Count returns the number of stored models matching the options.
	// Limit and offset are ignored.
	Count(ctx context.Context, options ...repository.Option) (int64, error)

	// LoadAll loads every matching model. Models that fail to decode are
	// skipped and reported through the joined error; the rest are returned.
	LoadAll(ctx context.Context, options ...repository.Option) ([]*Model, error)

	// Delete removes a model.
	Delete(ctx context.Context, id int64) error
}
