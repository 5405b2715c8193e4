package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"taskboard/api/internal/config"
	"taskboard/api/internal/database"
	"taskboard/api/internal/log"
)

func main() {
	cmd := flag.String("cmd", "up", "migration command: up|down|status|version|redo|reset|up-to|down-to")
	version := flag.String("version", "", "target version for up-to and down-to")
	flag.Parse()

	if args := flag.Args(); len(args) > 0 {
		*cmd = args[0]
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := log.New(cfg.Environment).With().Str("component", "migrate").Str("cmd", *cmd).Logger()

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		logger.Error().Err(err).Msg("resource not working: database")
		os.Exit(1)
	}
	defer pool.Close()

	var args []string
	switch *cmd {
	case "up", "down", "status", "version", "redo", "reset":
	case "up-to", "down-to":
		if *version == "" {
			fmt.Fprintf(os.Stderr, "missing -version for %s\n", *cmd)
			os.Exit(1)
		}
		args = append(args, *version)
	default:
		fmt.Fprintln(os.Stderr, "unknown command:", *cmd)
		os.Exit(1)
	}

	if err := database.Migrate(ctx, pool, *cmd, args...); err != nil {
		pool.Close()
		logger.Error().Err(err).Msg("migration failed")
		os.Exit(1)
	}
	logger.Info().Msg("migration finished")
}
