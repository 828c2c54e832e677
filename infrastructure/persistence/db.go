// Package persistence stores fits and sweep results in the fit database.
package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/helixml/linefit/internal/database"
	"gorm.io/gorm"
)

// ErrSchemaMismatch indicates the database lacks tables or columns the
// stores need, typically a database written by an older release that
// AutoMigrate could not bring up to date.
var ErrSchemaMismatch = errors.New("fit database schema mismatch")

// models lists every table the stores use.
func models() []any {
	return []any{
		&FitModel{},
		&ResultModel{},
	}
}

// AutoMigrate creates or updates the fit and result tables.
func AutoMigrate(ctx context.Context, db database.Database) error {
	return db.Migrate(ctx, models()...)
}

// ValidateSchema checks that every table and column the stores map exists.
func ValidateSchema(ctx context.Context, db database.Database) error {
	session := db.Session(ctx)
	migrator := session.Migrator()

	var missing []string
	for _, model := range models() {
		stmt := &gorm.Statement{DB: session}
		if err := stmt.Parse(model); err != nil {
			return fmt.Errorf("parse model schema: %w", err)
		}
		if !migrator.HasTable(model) {
			missing = append(missing, stmt.Table)
			continue
		}

		columns, err := migrator.ColumnTypes(model)
		if err != nil {
			return fmt.Errorf("column types of %s: %w", stmt.Table, err)
		}
		present := make(map[string]bool, len(columns))
		for _, c := range columns {
			present[c.Name()] = true
		}
		for _, field := range stmt.Schema.Fields {
			if field.DBName != "" && !present[field.DBName] {
				missing = append(missing, stmt.Table+"."+field.DBName)
			}
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrSchemaMismatch, strings.Join(missing, ", "))
	}
	return nil
}
