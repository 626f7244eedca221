package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"

	"github.com/egendata/operator/internal/database/migrations"
)

// goose entry points, swapped out in tests.
var (
	gooseUpContext     = goose.UpContext
	gooseDownContext   = goose.DownContext
	gooseStatusContext = goose.StatusContext
)

func prepareGoose() error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}
	return nil
}

// Migrate applies the embedded schema migrations in the given direction
// ("up", "down" or "status").
func (db *DB) Migrate(ctx context.Context, direction string) error {
	if err := prepareGoose(); err != nil {
		return err
	}

	var run func(context.Context, *sql.DB, string, ...goose.OptionsFunc) error
	switch direction {
	case "", "up":
		run = gooseUpContext
	case "down":
		run = gooseDownContext
	case "status":
		run = gooseStatusContext
	default:
		return fmt.Errorf("unknown migration direction %q", direction)
	}

	db.logger.WithField("direction", direction).Info("Running database migrations")
	if err := run(ctx, db.DB.DB, "."); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
