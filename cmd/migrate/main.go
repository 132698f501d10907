package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"kasirinaja/backoffice/internal/config"
	"kasirinaja/backoffice/internal/logger"
	"kasirinaja/backoffice/internal/store/gormstore"
	"kasirinaja/backoffice/internal/store/migrations"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "migrate"})

	_ = godotenv.Load()

	cmd := flag.String("cmd", "up", "migration command: up|down|status|redo|reset|version|up-to|down-to")
	version := flag.String("version", "", "target version for -cmd=up-to and -cmd=down-to")
	flag.Parse()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.LogLevel),
		Format:      cfg.LogFormat,
	})
	ctx = logg.WithFields(ctx, map[string]any{
		"env":    cfg.AppEnv,
		"cmd":    *cmd,
		"driver": cfg.DatabaseDriver,
	})

	if cfg.DatabaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}

	db, err := gormstore.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseURL)
	requireResource(ctx, logg, "database", err)
	defer db.Close()

	var args []string
	switch *cmd {
	case "up-to", "down-to":
		if *version == "" {
			fmt.Fprintf(os.Stderr, "missing -version for -cmd=%s\n", *cmd)
			os.Exit(1)
		}
		args = append(args, *version)
	}

	logg.Info(ctx, "migrate ready")
	if err := migrations.Run(ctx, db.SQLDB(), db.Driver(), *cmd, args...); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	logg.Info(ctx, "migrate done")
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
