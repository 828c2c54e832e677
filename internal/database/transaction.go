package database

import (
	"context"

	"gorm.io/gorm"
)

// Transact runs fn in a transaction and returns its result. The
// transaction commits when fn returns nil. An error rolls it back, as does
// a panic, which is then re-raised.
func Transact[T any](ctx context.Context, db Database, fn func(tx *gorm.DB) (T, error)) (T, error) {
	var result T
	err := db.Session(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		result, err = fn(tx)
		return err
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}
