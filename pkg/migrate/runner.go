package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/pressly/goose/v3"

	"github.com/storefront-labs/storefront/pkg/logger"
)

// Runner drives a goose provider against one database.
type Runner struct {
	provider *goose.Provider
	logg     *logger.Logger
}

// Applied is the state of one migration file.
type Applied struct {
	Version   int64
	File      string
	Applied   bool
	AppliedAt time.Time
}

func NewRunner(db *sql.DB, migrations fs.FS, logg *logger.Logger) (*Runner, error) {
	if db == nil {
		return nil, errors.New("migrate: nil database")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations)
	if err != nil {
		return nil, fmt.Errorf("migrate: building provider: %w", err)
	}
	return &Runner{provider: provider, logg: logg}, nil
}

// Up applies every pending migration.
func (r *Runner) Up(ctx context.Context) error {
	results, err := r.provider.Up(ctx)
	r.report(ctx, results...)
	if err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// Down rolls back the most recent migration.
func (r *Runner) Down(ctx context.Context) error {
	result, err := r.provider.Down(ctx)
	if result != nil {
		r.report(ctx, result)
	}
	if err != nil {
		return fmt.Errorf("migrate down: %w", err)
	}
	return nil
}

// To moves the schema up or down until version is the latest applied one.
func (r *Runner) To(ctx context.Context, version int64) error {
	current, err := r.provider.GetDBVersion(ctx)
	if err != nil {
		return fmt.Errorf("migrate: reading schema version: %w", err)
	}
	var results []*goose.MigrationResult
	switch {
	case version == current:
		return nil
	case version > current:
		results, err = r.provider.UpTo(ctx, version)
	default:
		results, err = r.provider.DownTo(ctx, version)
	}
	r.report(ctx, results...)
	if err != nil {
		return fmt.Errorf("migrate to %d: %w", version, err)
	}
	return nil
}

func (r *Runner) Status(ctx context.Context) ([]Applied, error) {
	statuses, err := r.provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("migrate status: %w", err)
	}
	out := make([]Applied, 0, len(statuses))
	for _, st := range statuses {
		out = append(out, Applied{
			Version:   st.Source.Version,
			File:      st.Source.Path,
			Applied:   st.State == goose.StateApplied,
			AppliedAt: st.AppliedAt,
		})
	}
	return out, nil
}

func (r *Runner) report(ctx context.Context, results ...*goose.MigrationResult) {
	for _, res := range results {
		if res == nil || res.Source == nil {
			continue
		}
		fields := logFields(res)
		if res.Error != nil {
			r.logg.Error(r.logg.WithFields(ctx, fields), "migration failed", res.Error)
			continue
		}
		r.logg.Info(r.logg.WithFields(ctx, fields), "migration applied")
	}
}

func logFields(res *goose.MigrationResult) map[string]any {
	return map[string]any{
		"version":     res.Source.Version,
		"file":        res.Source.Path,
		"direction":   res.Direction,
		"duration_ms": res.Duration.Milliseconds(),
	}
}
