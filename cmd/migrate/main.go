package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/mmynk/splitledger/internal/config"
	"github.com/mmynk/splitledger/internal/storage/sqlstore"
	"github.com/mmynk/splitledger/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cmd := flag.String("cmd", "up", "migration command: up|down|status|version|redo|reset|to")
	version := flag.String("version", "", "target version for -cmd=to")
	logLevel := flag.String("log-level", "info", "log level")
	flag.Parse()

	logger := logging.Setup(*logLevel, false)

	cfg, err := config.LoadDB()
	if err != nil {
		logger.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	cfg.AutoMigrate = false

	ctx := context.Background()
	store, err := sqlstore.Open(ctx, *cfg, logger)
	if err != nil {
		logger.Error("Failed to open database", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	logger.Info("Migrate ready", "driver", store.Dialect(), "cmd", *cmd)

	switch *cmd {
	case "up", "down", "status", "version", "redo", "reset":
		err = store.RunMigrations(ctx, *cmd)
	case "to":
		if *version == "" {
			fmt.Fprintln(os.Stderr, "missing -version for -cmd=to")
			store.Close()
			os.Exit(2)
		}
		err = store.MigrateToVersion(ctx, *version)
	default:
		fmt.Fprintln(os.Stderr, "unknown -cmd value:", *cmd)
		store.Close()
		os.Exit(2)
	}
	if err != nil {
		logger.Error("Migration failed", "cmd", *cmd, "error", err)
		store.Close()
		os.Exit(1)
	}
}
