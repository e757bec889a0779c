package main

import (
	"context"
	"log/slog"

	"github.com/organized-thot/brodev3-antidetect/internal/adapter/driven/baserow"
	"github.com/organized-thot/brodev3-antidetect/internal/adapter/driven/fsstore"
	"github.com/organized-thot/brodev3-antidetect/internal/adapter/driven/ratelimit"
	sqliteadapter "github.com/organized-thot/brodev3-antidetect/internal/adapter/driven/sqlite"
	"github.com/organized-thot/brodev3-antidetect/internal/application"
	"github.com/organized-thot/brodev3-antidetect/internal/config"
	"github.com/organized-thot/brodev3-antidetect/internal/domain/port/driven"
	"github.com/organized-thot/brodev3-antidetect/internal/logging"
)

// deps is what a subcommand needs. Each invocation builds its own; the bucket
// therefore only throttles within one process.
type deps struct {
	repo *application.ProfileRepository
	dirs driven.ProfileDirs
	svc  *application.ProfileService
}

// depsLoader builds deps and returns a cleanup func.
type depsLoader func(ctx context.Context) (*deps, func(), error)

// loadDeps wires the real adapters from the environment (and .env).
func loadDeps(ctx context.Context) (*deps, func(), error) {
	if err := config.LoadDotEnv(".env"); err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	// Repository failures are logged, so keep them off stdout.
	logger, logCloser, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)

	bucket, err := ratelimit.NewBucket(cfg.RateTokens, cfg.RateInterval)
	if err != nil {
		_ = logCloser.Close()
		return nil, nil, err
	}
	table, err := baserow.NewClient(baserow.Settings{
		BaseURL:    cfg.BaserowURL,
		TableID:    cfg.TableID,
		Token:      cfg.BaserowToken,
		AuthScheme: cfg.AuthScheme,
		Cache:      cfg.Cache,
	})
	if err != nil {
		_ = logCloser.Close()
		return nil, nil, err
	}

	db, err := sqliteadapter.OpenJournal(ctx, cfg.DBPath)
	if err != nil {
		_ = logCloser.Close()
		return nil, nil, err
	}
	if _, err := db.Migrate(); err != nil {
		_ = db.Close()
		_ = logCloser.Close()
		return nil, nil, err
	}

	dirs := fsstore.NewDirs(cfg.StorageDir, logger)
	repo := application.NewProfileRepository(table, bucket, logger)
	svc := application.NewProfileService(repo, dirs, sqliteadapter.NewEventRepo(db), logger)

	cleanup := func() {
		if err := db.Close(); err != nil {
			slog.Error("error closing database", "error", err)
		}
		_ = logCloser.Close()
	}
	return &deps{repo: repo, dirs: dirs, svc: svc}, cleanup, nil
}
