// Package db carries the SQL schema of the relay. Migrations are embedded
// into the binary and applied with sql-migrate.
package db

import (
	"embed"

	migrate "github.com/rubenv/sql-migrate"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// MigrationSource returns the embedded migration plan.
func MigrationSource() migrate.MigrationSource {
	return &migrate.EmbedFileSystemMigrationSource{
		FileSystem: migrationFS,
		Root:       "migrations",
	}
}
