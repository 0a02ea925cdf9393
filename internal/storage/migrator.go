package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/a2sprobe/assets"
)

const migrationTableSchema = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version TEXT PRIMARY KEY,
	applied_at DATETIME
);`

// runMigrations applies embedded SQL files that are not recorded yet, in name order.
func runMigrations(db *sql.DB) error {
	if _, err := db.Exec(migrationTableSchema); err != nil {
		return fmt.Errorf("failed to create migration table: %w", err)
	}

	files, err := migrationFiles()
	if err != nil {
		return err
	}

	for _, file := range files {
		var exists int
		err := db.QueryRow("SELECT 1 FROM schema_migrations WHERE version = ?", file).Scan(&exists)
		if err == nil {
			continue // applied
		} else if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to check migration status: %w", err)
		}

		log.Info().Str("file", file).Msg("Applying database migration...")
		if err := applyMigration(db, file); err != nil {
			return err
		}
	}

	return nil
}

func migrationFiles() ([]string, error) {
	entries, err := assets.ReadDir(assets.MigrationsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations dir: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	return files, nil
}

// applyMigration executes one file and records it in a single transaction.
func applyMigration(db *sql.DB, file string) error {
	content, err := assets.ReadFile(path.Join(assets.MigrationsDir, file))
	if err != nil {
		return fmt.Errorf("failed to read migration file %s: %w", file, err)
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(string(content)); err != nil {
		return fmt.Errorf("failed to exec migration %s: %w", file, err)
	}

	if _, err := tx.Exec("INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)", file, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to record migration %s: %w", file, err)
	}

	return tx.Commit()
}
