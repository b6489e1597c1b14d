package migrate

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"go.uber.org/multierr"
)

const versionLayout = "20060102150405"

var (
	fileNameRe = regexp.MustCompile(`^(\d{14})_([a-z0-9]+(?:_[a-z0-9]+)*)\.sql$`)
	slugRe     = regexp.MustCompile(`[^a-z0-9]+`)
)

const scaffold = `-- +goose Up
-- +goose StatementBegin
SELECT 'up: %[1]s';
-- +goose StatementEnd

-- +goose Down
-- +goose StatementBegin
SELECT 'down: %[1]s';
-- +goose StatementEnd
`

// Scaffold writes an empty goose migration named <version>_<slug>.sql into
// dir, versioned by at in UTC.
func Scaffold(dir, name string, at time.Time) (string, error) {
	slug := strings.Trim(slugRe.ReplaceAllString(strings.ToLower(name), "_"), "_")
	if slug == "" {
		return "", fmt.Errorf("migration name %q has no usable characters", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	file := filepath.Join(dir, at.UTC().Format(versionLayout)+"_"+slug+".sql")
	f, err := os.OpenFile(file, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("creating migration: %w", err)
	}
	defer f.Close()
	if _, err := fmt.Fprintf(f, scaffold, slug); err != nil {
		return "", err
	}
	return file, nil
}

// Check lints every .sql file in migrations: names must be
// <14-digit version>_<snake_name>.sql, versions unique, and both goose
// annotations present. All problems are reported together.
func Check(migrations fs.FS) error {
	files, err := fs.Glob(migrations, "*.sql")
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return errors.New("no migrations found")
	}
	var problems []error
	versions := make(map[string]string, len(files))
	for _, name := range files {
		m := fileNameRe.FindStringSubmatch(path.Base(name))
		if m == nil {
			problems = append(problems, fmt.Errorf("%s: want <YYYYMMDDHHMMSS>_<snake_name>.sql", name))
			continue
		}
		if _, err := time.Parse(versionLayout, m[1]); err != nil {
			problems = append(problems, fmt.Errorf("%s: version is not a timestamp", name))
		}
		if other, dup := versions[m[1]]; dup {
			problems = append(problems, fmt.Errorf("%s: version %s already used by %s", name, m[1], other))
		}
		versions[m[1]] = name

		body, err := fs.ReadFile(migrations, name)
		if err != nil {
			problems = append(problems, err)
			continue
		}
		for _, marker := range []string{"-- +goose Up", "-- +goose Down"} {
			if !strings.Contains(string(body), marker) {
				problems = append(problems, fmt.Errorf("%s: missing %q", name, marker))
			}
		}
	}
	return multierr.Combine(problems...)
}
