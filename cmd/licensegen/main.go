package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"taskboard/api/internal/config"
	"taskboard/api/internal/database"
	"taskboard/api/internal/log"
	"taskboard/api/internal/models"
	"taskboard/api/internal/repository"
	"taskboard/api/internal/security"
)

type keyCreator interface {
	CreateKey(ctx context.Context, key models.LicenseKey) (models.LicenseKey, error)
}

type options struct {
	MultiUse bool
	Days     int
	Feature  string
	Count    int
}

func main() {
	env := viper.New()
	env.SetEnvPrefix("license")
	env.AutomaticEnv()
	env.SetDefault("multi_use", false)
	env.SetDefault("days", 365)
	env.SetDefault("feature", "pro")

	var opts options
	flag.BoolVar(&opts.MultiUse, "multi-use", env.GetBool("multi_use"), "allow any number of users to redeem each key")
	flag.IntVar(&opts.Days, "days", env.GetInt("days"), "days until expiry, 0 for no expiry")
	flag.StringVar(&opts.Feature, "feature", env.GetString("feature"), "feature granted by the key")
	flag.IntVar(&opts.Count, "count", 1, "number of keys to generate")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := log.New(cfg.Environment).With().Str("component", "licensegen").Logger()

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		logger.Error().Err(err).Msg("resource not working: database")
		os.Exit(1)
	}

	err = generate(ctx, repository.NewLicenseRepository(pool), opts, time.Now(), os.Stdout)
	pool.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
}

// generate stores count fresh keys and prints each raw key once. It stops at the first failure.
func generate(ctx context.Context, store keyCreator, opts options, now time.Time, out io.Writer) error {
	if opts.Count < 1 {
		return fmt.Errorf("count must be at least 1")
	}
	if opts.Days < 0 {
		return fmt.Errorf("days must not be negative")
	}

	var feature *string
	if f := strings.TrimSpace(opts.Feature); f != "" {
		feature = &f
	}
	var expiresAt *time.Time
	if opts.Days > 0 {
		t := now.UTC().Add(time.Duration(opts.Days) * 24 * time.Hour)
		expiresAt = &t
	}

	for i := 0; i < opts.Count; i++ {
		raw, err := security.GenerateLicenseKey()
		if err != nil {
			return fmt.Errorf("generate key: %w", err)
		}

		key, err := store.CreateKey(ctx, models.LicenseKey{
			KeyHash:    security.HashLicenseKey(raw),
			IsMultiUse: opts.MultiUse,
			Feature:    feature,
			ExpiresAt:  expiresAt,
		})
		if err != nil {
			if errors.Is(err, repository.ErrLicenseKeyExists) {
				return fmt.Errorf("duplicate key hash: %w", err)
			}
			return err
		}

		expiry := "never"
		if key.ExpiresAt != nil {
			expiry = key.ExpiresAt.Format(time.RFC3339)
		}
		fmt.Fprintf(out, "%s\tfeature=%s multi_use=%t expires_at=%s\n", raw, opts.Feature, key.IsMultiUse, expiry)
	}
	return nil
}
