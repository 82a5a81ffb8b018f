package database

import (
	"database/sql"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

// withMigrations points goose at fsys for the duration of fn.
// goose keeps its base filesystem in package state, so callers must not overlap.
func withMigrations(fsys fs.FS, fn func() error) error {
	goose.SetBaseFS(fsys)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	return fn()
}

// RunMigrations applies every pending migration found at the root of fsys.
func RunMigrations(db *sql.DB, fsys fs.FS, logger *zap.Logger) error {
	return withMigrations(fsys, func() error {
		if err := goose.Up(db, "."); err != nil {
			logger.Error("Failed to run migrations", zap.Error(err))
			return fmt.Errorf("failed to run migrations: %w", err)
		}

		version, err := goose.GetDBVersion(db)
		if err != nil {
			return fmt.Errorf("failed to read schema version: %w", err)
		}
		logger.Info("Database schema is up to date", zap.Int64("version", version))
		return nil
	})
}

// GetMigrationStatus prints applied and pending migrations to stdout.
func GetMigrationStatus(db *sql.DB, fsys fs.FS) error {
	return withMigrations(fsys, func() error {
		return goose.Status(db, ".")
	})
}
