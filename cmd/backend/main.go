package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"admin-backend/internal/audit"
	"admin-backend/internal/config"
	"admin-backend/internal/db"
	"admin-backend/internal/logging"
	"admin-backend/internal/objectstore"
	"admin-backend/internal/server"
	"admin-backend/internal/store"
	"admin-backend/internal/upload"
)

// backend is the store the manager and the audit recorder share.
type backend interface {
	upload.Store
	audit.Sink
	server.Pinger
}

// objectBackend is the object store the manager writes to.
type objectBackend interface {
	upload.ObjectStore
	server.Pinger
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Error("invalid configuration", nil, err)
		os.Exit(1)
	}
	logging.Configure(cfg.LogFormat, cfg.LogLevel, cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		logging.Error("store init failed", nil, err)
		os.Exit(1)
	}
	defer closeStore()

	objects, err := openObjectStore(ctx, cfg)
	if err != nil {
		logging.Error("object store init failed", logging.Fields{"driver": cfg.StorageDriver}, err)
		os.Exit(1)
	}

	mgr := upload.NewManager(st, objects, cfg.Upload)

	go mgr.StartSweeper(ctx, cfg.Sweeper)

	srv := server.New(server.Config{
		Addr:                 cfg.HTTPAddr,
		Build:                server.BuildInfo{Version: cfg.Build.Version, Commit: cfg.Build.Commit},
		Manager:              mgr,
		Audit:                audit.NewRecorder(st),
		APIKeyHash:           cfg.AdminAPIKeyHash,
		Database:             st,
		Storage:              objects,
		MaxDirectUploadBytes: cfg.MaxDirectUploadBytes,
		RateLimit:            cfg.RateLimitPerMinute,
	})

	if cfg.AdminAPIKeyHash == "" {
		logging.Warn("ADMIN_API_KEY_HASH not set, /v1 is unauthenticated", nil)
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info("server starting", logging.Fields{
			"addr":    cfg.HTTPAddr,
			"version": cfg.Build.Version,
			"commit":  cfg.Build.Commit,
			"storage": cfg.StorageDriver,
		})
		errCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		logging.Info("shutting down", nil)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logging.Error("shutdown error", nil, err)
			os.Exit(1)
		}
		logging.Info("shutdown complete", nil)
	case err := <-errCh:
		if err != nil {
			logging.Error("server error", nil, err)
			os.Exit(1)
		}
	}
}

// openStore connects to Postgres and migrates it, or falls back to the
// in-memory store outside production when DATABASE_URL is unset.
func openStore(ctx context.Context, cfg config.Config) (backend, func(), error) {
	if cfg.UseMemoryStore() {
		logging.Warn("DATABASE_URL not set, using in-memory store", logging.Fields{"env": cfg.Env})
		return store.NewMemory(), func() {}, nil
	}

	conn, err := db.OpenDB(ctx, cfg.DatabaseURL, db.PoolConfig{})
	if err != nil {
		return nil, nil, fmt.Errorf("connect: %w", err)
	}
	closeFn := func() { _ = conn.Close() }

	logging.Info("running migrations", nil)
	if err := db.RunMigrations(conn); err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	logging.Info("migrations complete", nil)

	return store.NewPostgres(conn), closeFn, nil
}

func openObjectStore(ctx context.Context, cfg config.Config) (objectBackend, error) {
	initCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	if cfg.StorageDriver == config.DriverS3 {
		s3, err := objectstore.NewS3(initCtx, cfg.Storage)
		if err != nil {
			return nil, err
		}
		return s3, nil
	}

	m, err := objectstore.NewMinio(initCtx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	return m, nil
}
