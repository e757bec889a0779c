package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	"github.com/organized-thot/brodev3-antidetect/internal/adapter/driven/baserow"
	"github.com/organized-thot/brodev3-antidetect/internal/adapter/driven/fsstore"
	"github.com/organized-thot/brodev3-antidetect/internal/adapter/driven/ratelimit"
	sqliteadapter "github.com/organized-thot/brodev3-antidetect/internal/adapter/driven/sqlite"
	httphandler "github.com/organized-thot/brodev3-antidetect/internal/adapter/driving/http"
	"github.com/organized-thot/brodev3-antidetect/internal/application"
	"github.com/organized-thot/brodev3-antidetect/internal/config"
	"github.com/organized-thot/brodev3-antidetect/internal/logging"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on missing required env vars).
	if err := config.LoadDotEnv(".env"); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// 2. Logger (stderr or rotating file).
	logger, logCloser, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return err
	}
	defer logCloser.Close()
	slog.SetDefault(logger)

	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"storage_dir", cfg.StorageDir,
		"table_id", cfg.TableID,
		"rate_tokens", cfg.RateTokens,
		"rate_interval", cfg.RateInterval,
		"request_timeout", cfg.RequestTimeout,
		"cache", cfg.Cache,
		"cache_entries", cfg.CacheEntries,
	)

	// 3. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Open the journal (in memory when PROFILEHUB_DB_PATH is empty).
	db, err := sqliteadapter.OpenJournal(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	// 5. Bring the journal schema up to date.
	version, err := db.Migrate()
	if err != nil {
		return err
	}
	slog.Info("journal ready", "path", db.Path(), "schema_version", version)

	// 6. Wire adapters.
	bucket, err := ratelimit.NewBucket(cfg.RateTokens, cfg.RateInterval)
	if err != nil {
		return err
	}
	table, err := baserow.NewClient(baserow.Settings{
		BaseURL:      cfg.BaserowURL,
		TableID:      cfg.TableID,
		Token:        cfg.BaserowToken,
		AuthScheme:   cfg.AuthScheme,
		Cache:        cfg.Cache,
		CacheEntries: cfg.CacheEntries,
	})
	if err != nil {
		return err
	}
	dirs := fsstore.NewDirs(cfg.StorageDir, logger)
	events := sqliteadapter.NewEventRepo(db)

	// 7. Create services.
	repo := application.NewProfileRepository(table, bucket, logger)
	profileSvc := application.NewProfileService(repo, dirs, events, logger)

	// 8. Create HTTP handler and register API routes.
	apiHandler := httphandler.NewHandler(profileSvc, logger)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           httphandler.NewServeMux(apiHandler, logger, cfg.RequestTimeout),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// Handlers are cut off at RequestTimeout; the margin lets the 503 go out.
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
			stop()
		}
	}()

	// 9. Log startup complete.
	slog.Info("profilehub started",
		"listen_addr", cfg.ListenAddr,
		"profiles_dir", dirs.Root(),
	)

	// 10. Wait for shutdown signal.
	<-ctx.Done()
	slog.Info("shutting down")

	// 11. Graceful shutdown with 10s timeout to drain in-flight requests.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}
