package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"

	"github.com/storefront-labs/storefront/pkg/config"
	"github.com/storefront-labs/storefront/pkg/db"
	"github.com/storefront-labs/storefront/pkg/db/models"
	"github.com/storefront-labs/storefront/pkg/logger"
	"github.com/storefront-labs/storefront/pkg/migrate"
)

const usage = "up|down|status|version|create|validate|models"

func main() {
	logg := logger.New(logger.Options{ServiceName: "migrate"})
	_ = godotenv.Load()

	cmd := flag.String("cmd", "up", "migration command: "+usage)
	dir := flag.String("dir", "", "migrations directory; empty uses the embedded set (create defaults to "+migrate.DefaultDir+")")
	name := flag.String("name", "", "migration name (for create)")
	version := flag.String("version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	// create and validate only touch the filesystem
	switch *cmd {
	case "create":
		if *name == "" {
			fail("missing -name for create")
		}
		target := *dir
		if target == "" {
			target = migrate.DefaultDir
		}
		path, err := migrate.Scaffold(target, *name, time.Now())
		if err != nil {
			fail("failed to create migration: %v", err)
		}
		fmt.Println("created migration:", path)
		return
	case "validate":
		src, err := migrate.Source(*dir)
		if err != nil {
			fail("%v", err)
		}
		if err := migrate.Check(src); err != nil {
			fail("migration validation failed:\n%v", err)
		}
		fmt.Println("migration validation passed")
		return
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":    cfg.App.Env,
		"cmd":    *cmd,
		"dir":    *dir,
		"driver": cfg.DB.Driver,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer dbClient.Close()

	if err := run(ctx, logg, dbClient, cfg.DB.Driver, *cmd, *dir, *version); err != nil {
		logg.Error(ctx, "migration failed", err)
		os.Exit(1)
	}
	logg.Info(ctx, "migration complete")
}

func run(ctx context.Context, logg *logger.Logger, client *db.Client, driver, cmd, dir, version string) error {
	if cmd == "models" {
		return client.DB().WithContext(ctx).AutoMigrate(models.All()...)
	}
	if strings.EqualFold(driver, db.DriverSQLite) {
		return fmt.Errorf("goose migrations target postgres; use -cmd=models for sqlite")
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	src, err := migrate.Source(dir)
	if err != nil {
		return err
	}
	runner, err := migrate.NewRunner(sqlDB, src, logg)
	if err != nil {
		return err
	}

	switch cmd {
	case "up":
		return runner.Up(ctx)
	case "down":
		return runner.Down(ctx)
	case "status":
		states, err := runner.Status(ctx)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "VERSION\tSTATE\tAPPLIED AT\tFILE")
		for _, st := range states {
			state, at := "pending", "-"
			if st.Applied {
				state, at = "applied", st.AppliedAt.Format(time.RFC3339)
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", st.Version, state, at, st.File)
		}
		return w.Flush()
	case "version":
		target, err := strconv.ParseInt(version, 10, 64)
		if err != nil {
			return fmt.Errorf("-version must be a YYYYMMDDHHMMSS number: %w", err)
		}
		return runner.To(ctx, target)
	default:
		return fmt.Errorf("unknown -cmd value %q (want %s)", cmd, usage)
	}
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
