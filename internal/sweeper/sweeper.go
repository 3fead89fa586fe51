// Package sweeper runs the stale-device ticker: clients whose last
// heartbeat lags beyond a threshold are transitioned to offline.
package sweeper

import (
	"context"
	"time"

	"github.com/JackRipper1888/GPUFabric/internal/metrics"
	"github.com/JackRipper1888/GPUFabric/pkg/db/store"
	"github.com/JackRipper1888/GPUFabric/pkg/logger"
)

type Config struct {
	Interval    time.Duration
	OfflineAfter time.Duration
}

func DefaultConfig() Config {
	return Config{
		Interval:     30 * time.Second,
		OfflineAfter: 5 * time.Minute,
	}
}

type Sweeper struct {
	db     store.Querier
	logger *logger.Logger
	config Config
}

func New(db store.Querier, l *logger.Logger, cfg Config) *Sweeper {
	return &Sweeper{db: db, logger: l, config: cfg}
}

// Start runs one sweep immediately, then on every tick until ctx is
// cancelled. A sweep failure never stops the loop; it retries next tick.
func (s *Sweeper) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	s.runSweep(ctx)

	s.logger.Info("sweeper started", "interval", s.config.Interval, "offline_after", s.config.OfflineAfter)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.runSweep(ctx)
		}
	}
}

func (s *Sweeper) runSweep(ctx context.Context) {
	metrics.SweepRunsTotal.Inc()

	cutoff := time.Now().Add(-s.config.OfflineAfter)
	ids, err := s.db.MarkStaleClientsOffline(ctx, cutoff)
	if err != nil {
		s.logger.Error("sweep failed", "error", err)
		return
	}

	if len(ids) > 0 {
		metrics.SweepClientsMarkedOffline.Add(float64(len(ids)))
		s.logger.Info("marked clients offline", "count", len(ids))
	}
}
