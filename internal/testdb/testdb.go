// Package testdb opens throwaway in-memory SQLite fit databases for tests.
package testdb

import (
	"context"
	"testing"

	"github.com/helixml/linefit/infrastructure/persistence"
	"github.com/helixml/linefit/internal/database"
)

// New returns a migrated in-memory database closed at the end of the test.
func New(t *testing.T) database.Database {
	t.Helper()
	db := NewPlain(t)
	if err := persistence.AutoMigrate(context.Background(), db); err != nil {
		t.Fatalf("testdb: migrate: %v", err)
	}
	return db
}

// NewPlain returns an in-memory database with no tables.
func NewPlain(t *testing.T) database.Database {
	t.Helper()
	db, err := database.NewDatabase(context.Background(), "sqlite:///:memory:")
	if err != nil {
		t.Fatalf("testdb: open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}
