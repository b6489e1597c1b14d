// Package migrate applies the goose SQL migrations that define the Postgres
// schema. The files ship embedded in the binary; a directory on disk can be
// used instead while authoring new ones.
package migrate

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
)

// DefaultDir is where new migration files are written.
const DefaultDir = "pkg/migrate/migrations"

//go:embed migrations/*.sql
var embedded embed.FS

// Source returns the migration files in dir, or the embedded set when dir is empty.
func Source(dir string) (fs.FS, error) {
	if dir != "" {
		if _, err := os.Stat(dir); err != nil {
			return nil, fmt.Errorf("migrations dir: %w", err)
		}
		return os.DirFS(dir), nil
	}
	return fs.Sub(embedded, "migrations")
}
