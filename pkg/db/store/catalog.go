package store

import (
	"context"
	"fmt"
	"strings"
)

// CreateOrUpdateModel upserts by (name, version); a nil IsActive leaves the
// existing row's active flag untouched, matching
// COALESCE(EXCLUDED.is_active, client_models.is_active) in the original.
const createOrUpdateModelSQL = `
INSERT INTO client_models (name, version, version_code, is_active, min_memory_mb, engine_type, min_gpu_memory_gb, download_url, checksum, expected_size)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (name, version) DO UPDATE SET
	version_code = EXCLUDED.version_code,
	is_active = COALESCE(EXCLUDED.is_active, client_models.is_active),
	min_memory_mb = EXCLUDED.min_memory_mb,
	engine_type = EXCLUDED.engine_type,
	min_gpu_memory_gb = EXCLUDED.min_gpu_memory_gb,
	download_url = EXCLUDED.download_url,
	checksum = EXCLUDED.checksum,
	expected_size = EXCLUDED.expected_size
RETURNING id, name, version, version_code, is_active, min_memory_mb, engine_type, min_gpu_memory_gb, download_url, checksum, expected_size, created_at
`

func (q *Queries) CreateOrUpdateModel(ctx context.Context, arg CreateOrUpdateModelParams) (ClientModel, error) {
	row := q.db.QueryRow(ctx, createOrUpdateModelSQL,
		arg.Name, arg.Version, arg.VersionCode, arg.IsActive, arg.MinMemoryMB,
		arg.EngineType, arg.MinGPUMemoryGB, arg.DownloadURL, arg.Checksum, arg.ExpectedSize,
	)
	var m ClientModel
	err := row.Scan(&m.ID, &m.Name, &m.Version, &m.VersionCode, &m.IsActive, &m.MinMemoryMB,
		&m.EngineType, &m.MinGPUMemoryGB, &m.DownloadURL, &m.Checksum, &m.ExpectedSize, &m.CreatedAt)
	return m, err
}

// GetModelsList builds its predicate dynamically from whichever filters are
// set, the same shape as the original's sqlx::QueryBuilder chain, and
// orders newest/most-capable model first: NULL min_gpu_memory_gb (works on
// anything) sorts last, not first.
func (q *Queries) GetModelsList(ctx context.Context, arg GetModelsListParams) ([]ClientModel, error) {
	var b strings.Builder
	b.WriteString(`SELECT id, name, version, version_code, is_active, min_memory_mb, engine_type, min_gpu_memory_gb, download_url, checksum, expected_size, created_at FROM client_models WHERE 1=1`)
	args := make([]interface{}, 0, 3)

	if arg.IsActive != nil {
		args = append(args, *arg.IsActive)
		fmt.Fprintf(&b, " AND is_active = $%d", len(args))
	}
	if arg.MinGPUMemoryGB != nil {
		args = append(args, *arg.MinGPUMemoryGB)
		fmt.Fprintf(&b, " AND (min_gpu_memory_gb IS NULL OR min_gpu_memory_gb <= $%d)", len(args))
	}
	if arg.EngineType != nil {
		args = append(args, *arg.EngineType)
		fmt.Fprintf(&b, " AND engine_type = $%d", len(args))
	}
	b.WriteString(" ORDER BY min_gpu_memory_gb DESC NULLS LAST, version_code DESC, created_at DESC")

	rows, err := q.db.Query(ctx, b.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ClientModel
	for rows.Next() {
		var m ClientModel
		if err := rows.Scan(&m.ID, &m.Name, &m.Version, &m.VersionCode, &m.IsActive, &m.MinMemoryMB,
			&m.EngineType, &m.MinGPUMemoryGB, &m.DownloadURL, &m.Checksum, &m.ExpectedSize, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
