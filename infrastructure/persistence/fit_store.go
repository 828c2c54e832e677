package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/helixml/linefit/domain/fit"
	"github.com/helixml/linefit/domain/repository"
	"github.com/helixml/linefit/internal/database"
	"gorm.io/gorm"
)

// FitStore implements fit.Store using GORM.
type FitStore struct {
	database.Repository[fit.Summary, FitModel]
	db        database.Database
	documents DocumentMapper
}

var _ fit.Store = FitStore{}

// NewFitStore creates a new FitStore.
func NewFitStore(db database.Database) FitStore {
	return FitStore{
		Repository: database.NewRepository[fit.Summary, FitModel](db, SummaryMapper{}, "fit"),
		db:         db,
	}
}

// Save stores m under name and returns the new id.
func (s FitStore) Save(ctx context.Context, name string, m *fit.Model) (int64, error) {
	return s.create(s.DB(ctx), name, m)
}

// SaveAll stores every model in one transaction.
func (s FitStore) SaveAll(ctx context.Context, names []string, models []*fit.Model) ([]int64, error) {
	if len(names) != len(models) {
		return nil, fmt.Errorf("save fits: %d names for %d models", len(names), len(models))
	}
	return database.Transact(ctx, s.db, func(tx *gorm.DB) ([]int64, error) {
		ids := make([]int64, 0, len(models))
		for i, m := range models {
			id, err := s.create(tx, names[i], m)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", names[i], err)
			}
			ids = append(ids, id)
		}
		return ids, nil
	})
}

func (s FitStore) create(db *gorm.DB, name string, m *fit.Model) (int64, error) {
	model, err := s.documents.ToModel(name, m)
	if err != nil {
		return 0, err
	}
	now := time.Now()
	model.CreatedAt = now
	model.UpdatedAt = now

	if result := db.Create(&model); result.Error != nil {
		return 0, fmt.Errorf("save fit: %w", result.Error)
	}
	return model.ID, nil
}

// Get loads one model by id.
func (s FitStore) Get(ctx context.Context, id int64) (*fit.Model, error) {
	var model FitModel
	result := s.DB(ctx).Where("id = ?", id).First(&model)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: fit %d", database.ErrNotFound, id)
		}
		return nil, fmt.Errorf("get fit: %w", result.Error)
	}
	return s.documents.ToDomain(model)
}

// List returns summaries matching the options, newest first unless ordered.
func (s FitStore) List(ctx context.Context, options ...repository.Option) ([]fit.Summary, error) {
	if len(repository.Build(options...).Orders()) == 0 {
		options = append(options, repository.WithOrderDesc("id"))
	}
	return s.Find(ctx, options...)
}

// LoadAll loads every matching model. A document that fails to decode is
// reported in the joined error and does not stop the others.
func (s FitStore) LoadAll(ctx context.Context, options ...repository.Option) ([]*fit.Model, error) {
	var models []FitModel
	db := database.ApplyOptions(s.DB(ctx).Model(&FitModel{}), options...)
	if result := db.Order("id ASC").Find(&models); result.Error != nil {
		return nil, fmt.Errorf("load fits: %w", result.Error)
	}

	loaded := make([]*fit.Model, 0, len(models))
	var errs []error
	for _, model := range models {
		m, err := s.documents.ToDomain(model)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		loaded = append(loaded, m)
	}
	return loaded, errors.Join(errs...)
}

// Delete removes a model by id.
func (s FitStore) Delete(ctx context.Context, id int64) error {
	result := s.DB(ctx).Where("id = ?", id).Delete(&FitModel{})
	if result.Error != nil {
		return fmt.Errorf("delete fit: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: fit %d", database.ErrNotFound, id)
	}
	return nil
}
