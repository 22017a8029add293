package db

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
)

// DevMode switches migration loading from the embedded filesystem to
// the source tree, so migration files can be edited without rebuilding.
var DevMode = false

// migrationsFS embeds the SQL migration files into the binary so a
// deployed instance never depends on finding them on disk.
//
//go:embed migrations
var migrationsFS embed.FS

// devMigrationsDir is where the migration files live relative to the
// repository root.
const devMigrationsDir = "internal/db/migrations"

// getMigrationsFS returns the migration files as a filesystem rooted
// at the directory containing the .sql files.
func getMigrationsFS() (fs.FS, error) {
	if DevMode {
		if _, err := os.Stat(devMigrationsDir); err != nil {
			return nil, fmt.Errorf("dev migrations directory not found: %w", err)
		}
		return os.DirFS(devMigrationsDir), nil
	}
	return fs.Sub(migrationsFS, "migrations")
}
