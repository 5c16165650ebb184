package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"lineupd/internal/catalog"
	"lineupd/internal/config"
	"lineupd/internal/log"
	"lineupd/internal/persistence/sqlite"
	"lineupd/internal/refresh"
	"lineupd/internal/relay"
	"lineupd/internal/server"
	"lineupd/internal/snapshot"
)

var (
	version = "v0.1.0"
	commit  = "none"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Printf("lineupd %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	cfg := config.FromEnv()

	log.Configure(log.Config{
		Level:   cfg.LogLevel,
		Service: "lineupd",
		Version: version,
	})
	logger := log.WithComponent("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(cfg.SnapshotDirectory, 0o755); err != nil {
		logger.Fatal().Err(err).Str("event", "startup.snapshot_dir_failed").Msg("failed to create snapshot directory")
	}

	if _, err := os.Stat(cfg.CatalogPath); err == nil {
		if issues, err := sqlite.VerifyIntegrity(cfg.CatalogPath, sqlite.IntegrityQuick); err != nil {
			logger.Warn().Err(err).Str("event", "startup.integrity_check_failed").Msg("catalog integrity check could not run")
		} else if issues != nil {
			logger.Fatal().Strs("issues", issues).Str("event", "startup.integrity_check_failed").Msg("catalog database failed integrity check")
		}
	}

	db, err := sqlite.Open(cfg.CatalogPath, sqlite.DefaultConfig())
	if err != nil {
		logger.Fatal().Err(err).Str("event", "startup.db_open_failed").Msg("failed to open catalog database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Warn().Err(err).Msg("error closing catalog database")
		}
	}()

	store := catalog.NewStore(db)
	if err := store.Migrate(); err != nil {
		logger.Fatal().Err(err).Str("event", "startup.migrate_failed").Msg("failed to migrate catalog schema")
	}

	builder := snapshot.NewBuilder(store, cfg.SnapshotDirectory, cfg.SnapshotRetentionCount)
	coordinator := refresh.New(store, builder, cfg.RefreshInterval(), cfg.RefreshTimeout(), cfg.RefreshStartupDelay())
	rl := relay.New(store)
	srv := server.New(store, coordinator, rl)

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: srv.Routes(),
	}

	logger.Info().
		Str("event", "startup").
		Str("version", version).
		Str("commit", commit).
		Str("addr", cfg.ListenAddr).
		Str("catalog_path", cfg.CatalogPath).
		Dur("refresh_interval", cfg.RefreshInterval()).
		Msg("starting lineupd")

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return coordinator.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Str("event", "runtime.failed").Msg("lineupd exited with error")
	}

	logger.Info().Msg("server exiting")
}
