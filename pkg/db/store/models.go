package store

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// EngineType mirrors the wire-format engine_type field of a heartbeat.
type EngineType int16

const (
	EngineTypeNone   EngineType = 0
	EngineTypeVLLM   EngineType = 1
	EngineTypeOllama EngineType = 2
	EngineTypeLlama  EngineType = 3
)

// OSType mirrors the wire-format os_type field of a heartbeat.
type OSType int16

const (
	OSTypeNone    OSType = 0
	OSTypeLinux   OSType = 1
	OSTypeWindows OSType = 2
	OSTypeMacOS   OSType = 3
)

type ClientStatus string

const (
	ClientStatusOnline  ClientStatus = "online"
	ClientStatusOffline ClientStatus = "offline"
)

type ValidStatus string

const (
	ValidStatusValid   ValidStatus = "valid"
	ValidStatusInvalid ValidStatus = "invalid"
)

type ErrorSeverity string

const (
	ErrorSeverityInfo    ErrorSeverity = "info"
	ErrorSeverityWarning ErrorSeverity = "warning"
	ErrorSeverityError   ErrorSeverity = "error"
	ErrorSeverityFatal   ErrorSeverity = "fatal"
)

// Client is a registered edge device, keyed by its 128-bit client id.
type Client struct {
	ClientID        pgtype.UUID
	UserID          pgtype.UUID
	ClientName      string
	ValidStatus     ValidStatus
	ClientStatus    ClientStatus
	LastHeartbeatAt pgtype.Timestamptz
	CreatedAt       pgtype.Timestamptz
	UpdatedAt       pgtype.Timestamptz
}

// PointInTime is one decoded heartbeat sample, persisted for audit before
// it is folded into the daily aggregates.
type PointInTime struct {
	ID          int64
	ClientID    pgtype.UUID
	RecordedAt  pgtype.Timestamptz
	CPUUsage    int32
	MemoryUsage int32
	DiskUsage   int32
	NetworkRX   int64
	NetworkTX   int64
}

// ClientDailyStats is the per-client, per-day running aggregate. Averages
// are maintained with a Welford-style update so the whole day's samples
// never have to be re-read; network counters store the latest observed
// cumulative value rather than a running average.
type ClientDailyStats struct {
	ClientID       pgtype.UUID
	Date           pgtype.Date
	HeartbeatCount int64
	CPUAvg         float64
	MemAvg         float64
	DiskAvg        float64
	NetRX          int64
	NetTX          int64
	LastSeen       pgtype.Timestamptz
}

// DeviceDailyStats is the per-GPU rollup (device_points_daily in the
// source schema), keyed by (client_id, device_id, device_index, date).
type DeviceDailyStats struct {
	ClientID        pgtype.UUID
	DeviceID        string
	DeviceIndex     int32
	Date            pgtype.Date
	DeviceName      pgtype.Text
	TotalHeartbeats int64
	Points          float64
}

// ClientModel is a catalog entry: one version of one named model, with the
// engine/memory constraints a device must satisfy to be offered it.
type ClientModel struct {
	ID             int32
	Name           string
	Version        string
	VersionCode    int64
	IsActive       bool
	MinMemoryMB    pgtype.Int4
	EngineType     EngineType
	MinGPUMemoryGB pgtype.Int4
	DownloadURL    pgtype.Text
	Checksum       pgtype.Text
	ExpectedSize   pgtype.Int8
	CreatedAt      pgtype.Timestamptz
}

// ErrorEvent is an unexpected-failure record persisted for operational
// visibility, independent of the domain error taxonomy.
type ErrorEvent struct {
	ID              pgtype.UUID
	SourceComponent string
	Severity        ErrorSeverity
	Message         string
	StackTrace      pgtype.Text
	ContextData     []byte
	CreatedAt       pgtype.Timestamptz
	Resolved        bool
}

// UserPointsRow is one page row of the points aggregate query, carrying
// the window-function totals alongside each record.
type UserPointsRow struct {
	ClientID    pgtype.UUID
	ClientName  string
	DeviceID    string
	Date        time.Time
	Points      float64
	TotalCount  int64
	SumPoints   float64
}
