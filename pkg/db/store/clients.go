package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

const upsertClientSQL = `
INSERT INTO clients (client_id, valid_status, client_status, last_heartbeat_at, created_at, updated_at)
VALUES ($1, 'valid', $2, now(), now(), now())
ON CONFLICT (client_id) DO UPDATE SET
	client_status = EXCLUDED.client_status,
	valid_status = 'valid',
	last_heartbeat_at = now(),
	updated_at = now()
`

func (q *Queries) UpsertClient(ctx context.Context, arg UpsertClientParams) error {
	_, err := q.db.Exec(ctx, upsertClientSQL, arg.ClientID, arg.Status)
	return err
}

const insertPointInTimeSQL = `
INSERT INTO point_in_time (client_id, recorded_at, cpu_usage, memory_usage, disk_usage, network_rx, network_tx)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, client_id, recorded_at, cpu_usage, memory_usage, disk_usage, network_rx, network_tx
`

func (q *Queries) InsertPointInTime(ctx context.Context, arg InsertPointInTimeParams) (PointInTime, error) {
	row := q.db.QueryRow(ctx, insertPointInTimeSQL,
		arg.ClientID, arg.RecordedAt, arg.CPUUsage, arg.MemoryUsage, arg.DiskUsage,
		arg.NetworkRX, arg.NetworkTX,
	)
	var p PointInTime
	err := row.Scan(&p.ID, &p.ClientID, &p.RecordedAt, &p.CPUUsage, &p.MemoryUsage, &p.DiskUsage, &p.NetworkRX, &p.NetworkTX)
	return p, err
}

// Welford-style running mean: avg_n = avg_{n-1} + (x - avg_{n-1}) / n. The
// network counters are cumulative per device reboot, so the upsert stores
// the latest observed value rather than averaging it.
const upsertClientDailyStatsSQL = `
INSERT INTO client_daily_stats (client_id, date, heartbeat_count, cpu_avg, mem_avg, disk_avg, net_rx, net_tx, last_seen)
VALUES ($1, $2, 1, $3, $4, $5, $6, $7, now())
ON CONFLICT (client_id, date) DO UPDATE SET
	heartbeat_count = client_daily_stats.heartbeat_count + 1,
	cpu_avg = client_daily_stats.cpu_avg + ($3 - client_daily_stats.cpu_avg) / (client_daily_stats.heartbeat_count + 1),
	mem_avg = client_daily_stats.mem_avg + ($4 - client_daily_stats.mem_avg) / (client_daily_stats.heartbeat_count + 1),
	disk_avg = client_daily_stats.disk_avg + ($5 - client_daily_stats.disk_avg) / (client_daily_stats.heartbeat_count + 1),
	net_rx = $6,
	net_tx = $7,
	last_seen = now()
`

func (q *Queries) UpsertClientDailyStats(ctx context.Context, arg UpsertClientDailyStatsParams) error {
	_, err := q.db.Exec(ctx, upsertClientDailyStatsSQL,
		arg.ClientID, arg.Date, arg.CPUUsage, arg.MemoryUsage, arg.DiskUsage, arg.NetworkRX, arg.NetworkTX)
	return err
}

const upsertDeviceDailyStatsSQL = `
INSERT INTO device_daily_stats (client_id, device_id, device_index, date, device_name, total_heartbeats, points)
VALUES ($1, $2, $3, $4, $5, 1, $6)
ON CONFLICT (client_id, device_id, device_index, date) DO UPDATE SET
	total_heartbeats = device_daily_stats.total_heartbeats + 1,
	points = device_daily_stats.points + $6
`

func (q *Queries) UpsertDeviceDailyStats(ctx context.Context, arg UpsertDeviceDailyStatsParams) error {
	_, err := q.db.Exec(ctx, upsertDeviceDailyStatsSQL,
		arg.ClientID, arg.DeviceID, arg.DeviceIndex, arg.Date, arg.DeviceName, arg.Points)
	return err
}

// MarkStaleClientsOffline flips every client that hasn't heartbeated since
// cutoff from online to offline, and returns the ids it touched. It never
// touches clients already offline or marked invalid, so re-running it on
// every sweep tick is idempotent.
const markStaleClientsOfflineSQL = `
UPDATE clients
SET client_status = 'offline', updated_at = now()
WHERE valid_status = 'valid'
	AND client_status <> 'offline'
	AND last_heartbeat_at < $1
RETURNING client_id
`

func (q *Queries) MarkStaleClientsOffline(ctx context.Context, cutoff time.Time) ([]pgtype.UUID, error) {
	rows, err := q.db.Query(ctx, markStaleClientsOfflineSQL, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []pgtype.UUID
	for rows.Next() {
		var id pgtype.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
