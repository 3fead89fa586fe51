// Package processor turns decoded heartbeat records into the point-in-time
// row plus the two daily-aggregate upserts, one DB transaction per record.
package processor

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/JackRipper1888/GPUFabric/internal/heartbeat"
	"github.com/JackRipper1888/GPUFabric/internal/metrics"
	"github.com/JackRipper1888/GPUFabric/pkg/db/store"
	"github.com/JackRipper1888/GPUFabric/pkg/logger"
)

var tracer = otel.Tracer("gpufabric/processor")

// Pool is the subset of *pgxpool.Pool the processor needs: one transaction
// per record.
type Pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Processor decodes and persists one heartbeat record at a time.
type Processor struct {
	pool    Pool
	queries *store.Queries
	logger  *logger.Logger
}

func New(pool Pool, queries *store.Queries, l *logger.Logger) *Processor {
	return &Processor{pool: pool, queries: queries, logger: l}
}

// ProcessRecord decodes payload and, on success, applies it within a single
// DB transaction. brokerTimestamp is used as the event time when non-zero;
// otherwise wall-clock now is used. A decode failure is logged and treated
// as handled (not retried): the caller should still ack the message.
func (p *Processor) ProcessRecord(ctx context.Context, payload []byte, brokerTimestamp time.Time) error {
	ctx, span := tracer.Start(ctx, "processor.process_record")
	defer span.End()

	start := time.Now()
	msg, err := heartbeat.Decode(payload)
	if err != nil {
		p.logger.Warn("skipping malformed heartbeat", "error", err)
		metrics.HeartbeatsTotal.WithLabelValues("decode_error").Inc()
		span.SetStatus(codes.Error, "decode failed")
		return nil
	}

	eventTS := brokerTimestamp
	if eventTS.IsZero() {
		eventTS = time.Now().UTC()
	}
	span.SetAttributes(attribute.Int("devices", len(msg.DevicesInfo)))

	if err := p.applyInTransaction(ctx, msg, eventTS); err != nil {
		p.logger.Error("heartbeat transaction failed", "error", err)
		metrics.HeartbeatsTotal.WithLabelValues("tx_error").Inc()
		metrics.HeartbeatProcessDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	metrics.HeartbeatsTotal.WithLabelValues("ok").Inc()
	metrics.HeartbeatProcessDuration.WithLabelValues("ok").Observe(time.Since(start).Seconds())
	return nil
}

func (p *Processor) applyInTransaction(ctx context.Context, msg heartbeat.Message, eventTS time.Time) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	txq := p.queries.WithTx(tx)
	clientID := pgtype.UUID{Bytes: msg.ClientID, Valid: true}

	if err := txq.UpsertClient(ctx, store.UpsertClientParams{
		ClientID: clientID,
		Status:   store.ClientStatusOnline,
	}); err != nil {
		return err
	}

	if _, err := txq.InsertPointInTime(ctx, store.InsertPointInTimeParams{
		ClientID:    clientID,
		RecordedAt:  eventTS,
		CPUUsage:    int32(msg.SystemInfo.CPUUsage),
		MemoryUsage: int32(msg.SystemInfo.MemoryUsage),
		DiskUsage:   int32(msg.SystemInfo.DiskUsage),
		NetworkRX:   int64(msg.SystemInfo.NetworkRX),
		NetworkTX:   int64(msg.SystemInfo.NetworkTX),
	}); err != nil {
		return err
	}

	day := time.Date(eventTS.Year(), eventTS.Month(), eventTS.Day(), 0, 0, 0, 0, time.UTC)
	if err := txq.UpsertClientDailyStats(ctx, store.UpsertClientDailyStatsParams{
		ClientID:    clientID,
		Date:        day,
		CPUUsage:    float64(msg.SystemInfo.CPUUsage),
		MemoryUsage: float64(msg.SystemInfo.MemoryUsage),
		DiskUsage:   float64(msg.SystemInfo.DiskUsage),
		NetworkRX:   int64(msg.SystemInfo.NetworkRX),
		NetworkTX:   int64(msg.SystemInfo.NetworkTX),
	}); err != nil {
		return err
	}

	clientUUID := uuid.UUID(msg.ClientID)
	for _, d := range msg.DevicesInfo {
		points := PointsEarned(d.MemtotalGB, d.GPUUtil)
		deviceID := DeviceID(clientUUID, d.PodID)

		if err := txq.UpsertDeviceDailyStats(ctx, store.UpsertDeviceDailyStatsParams{
			ClientID:    clientID,
			DeviceID:    deviceID,
			DeviceIndex: d.PodID,
			Date:        day,
			DeviceName:  deviceID,
			Points:      points,
		}); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// PointsEarned is the contribution-scoring rule: a base score equal to
// memtotal_gb/10 scaled by the clamped GPU utilization fraction.
func PointsEarned(memtotalGB uint32, gpuUtilPct uint8) float64 {
	util := float64(gpuUtilPct) / 100.0
	if util < 0 {
		util = 0
	}
	if util > 1 {
		util = 1
	}
	return float64(memtotalGB) / 10.0 * util
}

// DeviceID derives a stable per-GPU identifier from the owning client and
// its pod index, since the wire format only carries the index.
func DeviceID(clientID uuid.UUID, podID int32) string {
	return clientID.String() + ":" + strconv.Itoa(int(podID))
}
