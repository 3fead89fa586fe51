package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	_ "go.uber.org/automaxprocs"

	"github.com/JackRipper1888/GPUFabric/internal/ingest"
	"github.com/JackRipper1888/GPUFabric/internal/processor"
	"github.com/JackRipper1888/GPUFabric/internal/sweeper"
	"github.com/JackRipper1888/GPUFabric/internal/telemetry"
	"github.com/JackRipper1888/GPUFabric/pkg/bus"
	"github.com/JackRipper1888/GPUFabric/pkg/config"
	"github.com/JackRipper1888/GPUFabric/pkg/db/migrate"
	"github.com/JackRipper1888/GPUFabric/pkg/db/store"
	"github.com/JackRipper1888/GPUFabric/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:   "heartbeat-consumer",
	Short: "Drains device heartbeats off the bus into Postgres",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(logger.New("heartbeat-consumer"))
	},
}

func init() {
	flags := rootCmd.Flags()

	flags.String("database-url", "", "Postgres connection string (overrides DATABASE_URL)")
	viper.BindPFlag("DATABASE_URL", flags.Lookup("database-url"))

	flags.String("bootstrap-server", "", "NATS bootstrap server URL (overrides BOOTSTRAP_SERVER)")
	viper.BindPFlag("BOOTSTRAP_SERVER", flags.Lookup("bootstrap-server"))

	flags.Int("batch-size", 0, "max heartbeat records per fetched batch (overrides BATCH_SIZE)")
	viper.BindPFlag("BATCH_SIZE", flags.Lookup("batch-size"))

	flags.Int("batch-timeout", 0, "seconds to wait for a full batch before flushing a partial one (overrides BATCH_TIMEOUT_SECS)")
	viper.BindPFlag("BATCH_TIMEOUT_SECS", flags.Lookup("batch-timeout"))

	flags.Int("offline-after-secs", 0, "seconds of silence before a client is swept offline (overrides OFFLINE_AFTER_SECS)")
	viper.BindPFlag("OFFLINE_AFTER_SECS", flags.Lookup("offline-after-secs"))

	flags.Int("sweep-interval-secs", 0, "how often the offline sweeper runs (overrides SWEEP_INTERVAL_SECS)")
	viper.BindPFlag("SWEEP_INTERVAL_SECS", flags.Lookup("sweep-interval-secs"))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
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
	l.Info("config loaded", "batch_size", cfg.BatchSize, "batch_timeout_secs", cfg.BatchTimeoutSecs)

	shutdownTracing, err := telemetry.Init(ctx, telemetry.Config{ServiceName: "heartbeat-consumer"})
	if err != nil {
		l.Warn("tracing exporter unavailable, spans will no-op", "error", err)
	} else {
		defer shutdownTracing(context.Background())
	}

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

	b, err := bus.Connect(cfg.BootstrapServer, l)
	if err != nil {
		return err
	}
	defer b.Close()

	if err := b.InitStreams(ctx); err != nil {
		return err
	}
	l.Info("messaging bus initialized")

	queries := store.New(pool)
	proc := processor.New(pool, queries, l)

	batchTimeout := time.Duration(cfg.BatchTimeoutSecs) * time.Second
	consumer := ingest.NewConsumer(b, l, cfg.BatchSize, batchTimeout, 4)
	go drainBatches(ctx, consumer, proc, l)

	go func() {
		if err := consumer.Start(ctx); err != nil {
			l.Error("ingest consumer stopped", "error", err)
		}
	}()

	sweepCfg := sweeper.DefaultConfig()
	if cfg.SweepIntervalSecs > 0 {
		sweepCfg.Interval = time.Duration(cfg.SweepIntervalSecs) * time.Second
	}
	if cfg.OfflineAfterSecs > 0 {
		sweepCfg.OfflineAfter = time.Duration(cfg.OfflineAfterSecs) * time.Second
	}
	sw := sweeper.New(queries, l, sweepCfg)
	go func() {
		if err := sw.Start(ctx); err != nil {
			l.Error("sweeper stopped", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	l.Info("shutting down...")
	cancel()
	return nil
}

// drainBatches applies each heartbeat record through the processor and
// acks or naks it individually, so one malformed record in a batch never
// blocks the rest.
func drainBatches(ctx context.Context, consumer *ingest.Consumer, proc *processor.Processor, l *logger.Logger) {
	for batch := range consumer.Batches {
		for _, rec := range batch {
			if err := proc.ProcessRecord(ctx, rec.Payload, time.Time{}); err != nil {
				l.Error("failed to process heartbeat record", "error", err)
				if nakErr := rec.Nak(); nakErr != nil {
					l.Error("failed to nak heartbeat record", "error", nakErr)
				}
				continue
			}
			if ackErr := rec.Ack(); ackErr != nil {
				l.Error("failed to ack heartbeat record", "error", ackErr)
			}
		}
	}
}
