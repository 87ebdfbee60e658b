package app

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

// applyMigrations brings the schema up to date from the embedded migration files.
func applyMigrations(embedMigrations embed.FS, db *sql.DB) error {
	goose.SetBaseFS(embedMigrations)

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}

	return nil
}
