package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/helixml/linefit/domain/repository"
	"github.com/helixml/linefit/domain/service"
	"github.com/helixml/linefit/internal/database"
)

// ResultStore implements service.ResultStore using GORM.
type ResultStore struct {
	database.Repository[service.Record, ResultModel]
}

var _ service.ResultStore = ResultStore{}

// NewResultStore creates a new ResultStore.
func NewResultStore(db database.Database) ResultStore {
	return ResultStore{
		Repository: database.NewRepository[service.Record, ResultModel](db, ResultMapper{}, "sweep result"),
	}
}

// Append stores one record.
func (s ResultStore) Append(ctx context.Context, record service.Record) error {
	model := s.Mapper().ToModel(record)
	model.CreatedAt = time.Now()

	if result := s.DB(ctx).Create(&model); result.Error != nil {
		return fmt.Errorf("save sweep result: %w", result.Error)
	}
	return nil
}

// DeleteRun removes every record of a sweep run.
func (s ResultStore) DeleteRun(ctx context.Context, runID string) error {
	return s.DeleteBy(ctx, repository.WithRunID(runID))
}

// ForRun returns every record of a sweep run, best chi-square first.
func (s ResultStore) ForRun(ctx context.Context, runID string) ([]service.Record, error) {
	return s.Find(ctx,
		repository.WithRunID(runID),
		repository.BestFirst(),
		repository.WithOrderAsc("id"),
	)
}
