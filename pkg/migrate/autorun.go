package migrate

import (
	"context"
	"fmt"
	"strings"

	"github.com/storefront-labs/storefront/pkg/config"
	"github.com/storefront-labs/storefront/pkg/db"
	"github.com/storefront-labs/storefront/pkg/db/models"
	"github.com/storefront-labs/storefront/pkg/logger"
)

// MaybeRunDev brings the schema up to date on boot, but only in dev with
// STOREFRONT_AUTO_MIGRATE set. The goose files are Postgres SQL, so a SQLite
// database is built from the gorm models instead.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	if logg == nil {
		logg = logger.Nop()
	}
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "driver": cfg.DB.Driver})

	if strings.EqualFold(cfg.DB.Driver, db.DriverSQLite) {
		logg.Info(ctx, "dev auto-migrate from models")
		if err := client.DB().WithContext(ctx).AutoMigrate(models.All()...); err != nil {
			return fmt.Errorf("auto-migrating models: %w", err)
		}
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	migrations, err := Source("")
	if err != nil {
		return err
	}
	runner, err := NewRunner(sqlDB, migrations, logg)
	if err != nil {
		return err
	}
	logg.Info(ctx, "dev auto-migrate from embedded goose files")
	return runner.Up(ctx)
}
