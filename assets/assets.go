// Package assets embeds the SQL migrations applied by the storage layer.
package assets

import (
	"embed"
	"io/fs"
)

// MigrationsDir is the embedded directory holding numbered *.sql files.
const MigrationsDir = "migrations"

//go:embed migrations/*.sql
var migrations embed.FS

// ReadFile returns an embedded file by its slash separated path.
func ReadFile(name string) ([]byte, error) {
	return migrations.ReadFile(name)
}

// ReadDir lists an embedded directory.
func ReadDir(name string) ([]fs.DirEntry, error) {
	return migrations.ReadDir(name)
}
