package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "go.uber.org/automaxprocs"

	"github.com/JackRipper1888/GPUFabric/internal/api"
	"github.com/JackRipper1888/GPUFabric/internal/catalog"
	"github.com/JackRipper1888/GPUFabric/internal/objectstore"
	"github.com/JackRipper1888/GPUFabric/pkg/config"
	"github.com/JackRipper1888/GPUFabric/pkg/db/migrate"
	"github.com/JackRipper1888/GPUFabric/pkg/db/store"
	"github.com/JackRipper1888/GPUFabric/pkg/logger"
)

func main() {
	l := logger.New("api-server")

	if err := run(l); err != nil {
		l.Error("api-server crashed", "error", err)
		os.Exit(1)
	}
}

func run(l *logger.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	l.Info("config loaded", "port", cfg.Port)

	migrationsPath := "./migrations"
	if _, err := os.Stat("pkg/db/migrations"); err == nil {
		migrationsPath = "pkg/db/migrations"
	}
	if envPath := os.Getenv("MIGRATIONS_PATH"); envPath != "" {
		migrationsPath = envPath
	}

	if err := migrate.Run(cfg.DatabaseURL, migrationsPath); err != nil {
		l.Error("failed to run migrations", "error", err)
		return err
	}
	l.Info("database migrations applied")

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return err
	}
	l.Info("database connected")

	querier := store.New(pool)
	catalogSvc := catalog.New(querier, l)

	if cfg.S3Endpoint != "" {
		objStore, err := objectstore.New(objectstore.Config{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			Secure:    cfg.S3Secure,
		})
		if err != nil {
			l.Warn("object store unavailable, download_url values pass through unpresigned", "error", err)
		} else {
			catalogSvc.WithObjectStore(objStore)
			l.Info("object store configured", "endpoint", cfg.S3Endpoint, "bucket", cfg.S3Bucket)
		}
	}

	r := api.NewRouter(querier, catalogSvc, l)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		l.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error("server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	l.Info("shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	return srv.Shutdown(shutdownCtx)
}
