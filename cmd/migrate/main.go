package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/joho/godotenv"

	"github.com/aurelia-jewels/aurelia-backend/pkg/config"
	"github.com/aurelia-jewels/aurelia-backend/pkg/db"
	"github.com/aurelia-jewels/aurelia-backend/pkg/logger"
	"github.com/aurelia-jewels/aurelia-backend/pkg/migrate"
)

type options struct {
	dir     string
	name    string
	version string
}

// offline commands work on the migrations directory only.
var offline = map[string]func(options) error{
	"create": func(o options) error {
		if o.name == "" {
			return fmt.Errorf("missing -name for create")
		}
		path, err := migrate.CreateSQLMigration(o.dir, o.name)
		if err != nil {
			return err
		}
		fmt.Println("created migration:", path)
		return nil
	},
	"validate": func(o options) error {
		if err := migrate.ValidateDir(o.dir); err != nil {
			return err
		}
		fmt.Println("migration validation passed")
		return nil
	},
}

// goose commands need a postgres connection.
var goose = map[string]func(context.Context, *sql.DB, options) error{
	"up":     func(ctx context.Context, conn *sql.DB, o options) error { return migrate.Run(ctx, conn, o.dir, "up") },
	"down":   func(ctx context.Context, conn *sql.DB, o options) error { return migrate.Run(ctx, conn, o.dir, "down") },
	"status": func(ctx context.Context, conn *sql.DB, o options) error { return migrate.Run(ctx, conn, o.dir, "status") },
	"version": func(ctx context.Context, conn *sql.DB, o options) error {
		if o.version == "" {
			return fmt.Errorf("missing -version for version command")
		}
		return migrate.MigrateToVersion(ctx, conn, o.dir, o.version)
	},
}

func main() {
	logg := logger.New(logger.Options{ServiceName: "migrate"})
	_ = godotenv.Load()

	cmd := flag.String("cmd", "up", "migration command: "+commandList())
	var o options
	flag.StringVar(&o.dir, "dir", migrate.DefaultDir, "goose migrations directory")
	flag.StringVar(&o.name, "name", "", "migration name (for create)")
	flag.StringVar(&o.version, "version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	cfg, err := config.Load()
	requireResource(context.Background(), logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":    cfg.App.Env,
		"cmd":    *cmd,
		"dir":    o.dir,
		"driver": cfg.DB.Driver,
	})

	if run, ok := offline[*cmd]; ok {
		exitOnError(ctx, logg, *cmd, run(o))
		return
	}

	run, ok := goose[*cmd]
	if !ok {
		fmt.Fprintln(os.Stderr, "unknown -cmd value:", *cmd)
		os.Exit(1)
	}

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer dbClient.Close()

	// The SQL files are postgres-only; sqlite databases take the gorm schema.
	if cfg.DB.UsesSQLite() {
		if *cmd != "up" {
			exitOnError(ctx, logg, *cmd, fmt.Errorf("sqlite supports only -cmd=up"))
		}
		exitOnError(ctx, logg, "automigrate", migrate.AutoMigrate(dbClient.DB().WithContext(ctx)))
		logg.Info(ctx, "sqlite schema migrated")
		return
	}

	sqlDB, err := dbClient.DB().DB()
	requireResource(ctx, logg, "sql database", err)

	logg.Info(ctx, "migrate ready")
	exitOnError(ctx, logg, *cmd, run(ctx, sqlDB, o))
}

func commandList() string {
	names := make([]string, 0, len(offline)+len(goose))
	for name := range offline {
		names = append(names, name)
	}
	for name := range goose {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, "|")
}

func exitOnError(ctx context.Context, logg *logger.Logger, cmd string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("migrate %s failed", cmd), err)
	fmt.Fprintf(os.Stderr, "migrate %s failed: %v\n", cmd, err)
	os.Exit(1)
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
