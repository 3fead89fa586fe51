package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// Querier is the full set of SQL operations the heartbeat pipeline, model
// catalog, sweeper and points API depend on.
type Querier interface {
	UpsertClient(ctx context.Context, arg UpsertClientParams) error
	InsertPointInTime(ctx context.Context, arg InsertPointInTimeParams) (PointInTime, error)
	UpsertClientDailyStats(ctx context.Context, arg UpsertClientDailyStatsParams) error
	UpsertDeviceDailyStats(ctx context.Context, arg UpsertDeviceDailyStatsParams) error

	MarkStaleClientsOffline(ctx context.Context, cutoff time.Time) ([]pgtype.UUID, error)

	CreateOrUpdateModel(ctx context.Context, arg CreateOrUpdateModelParams) (ClientModel, error)
	GetModelsList(ctx context.Context, arg GetModelsListParams) ([]ClientModel, error)

	GetUserPoints(ctx context.Context, arg GetUserPointsParams) ([]UserPointsRow, int64, error)

	CreateErrorEvent(ctx context.Context, arg CreateErrorEventParams) (ErrorEvent, error)
}

type UpsertClientParams struct {
	ClientID pgtype.UUID
	Status   ClientStatus
}

type InsertPointInTimeParams struct {
	ClientID    pgtype.UUID
	RecordedAt  time.Time
	CPUUsage    int32
	MemoryUsage int32
	DiskUsage   int32
	NetworkRX   int64
	NetworkTX   int64
}

type UpsertClientDailyStatsParams struct {
	ClientID    pgtype.UUID
	Date        time.Time
	CPUUsage    float64
	MemoryUsage float64
	DiskUsage   float64
	NetworkRX   int64
	NetworkTX   int64
}

type UpsertDeviceDailyStatsParams struct {
	ClientID    pgtype.UUID
	DeviceID    string
	DeviceIndex int32
	Date        time.Time
	DeviceName  string
	Points      float64
}

type CreateOrUpdateModelParams struct {
	Name           string
	Version        string
	VersionCode    int64
	IsActive       *bool
	MinMemoryMB    pgtype.Int4
	EngineType     EngineType
	MinGPUMemoryGB pgtype.Int4
	DownloadURL    pgtype.Text
	Checksum       pgtype.Text
	ExpectedSize   pgtype.Int8
}

type GetModelsListParams struct {
	IsActive       *bool
	EngineType     *EngineType
	MinGPUMemoryGB *int32
}

// GetUserPointsParams carries the filters described in the points
// aggregator: a mandatory owning user plus optional narrowing predicates.
type GetUserPointsParams struct {
	UserID         pgtype.UUID
	ClientID       *pgtype.UUID
	ClientNameLike *string
	DeviceID       *string
	StartDate      *time.Time
	EndDate        *time.Time
	Page           int32
	PageSize       int32
}

type CreateErrorEventParams struct {
	SourceComponent string
	Severity        ErrorSeverity
	Message         string
	StackTrace      pgtype.Text
	ContextData     []byte
}

var _ Querier = (*Queries)(nil)
