// Package catalog resolves which model a reporting device should run and
// exposes the read-mostly model table behind a bounded cache.
package catalog

import (
	"context"
	"strings"

	"github.com/JackRipper1888/GPUFabric/internal/metrics"
	"github.com/JackRipper1888/GPUFabric/internal/objectstore"
	"github.com/JackRipper1888/GPUFabric/pkg/db/store"
	"github.com/JackRipper1888/GPUFabric/pkg/logger"
)

const cacheCapacity = 1000

// ModelInfo is the subset of a catalog row a device needs to fetch and run
// a model.
type ModelInfo struct {
	ID             int32
	Name           string
	Version        string
	VersionCode    int64
	EngineType     store.EngineType
	MinGPUMemoryGB *int32
	DownloadURL    string
	Checksum       string
	ExpectedSize   int64
}

type Service struct {
	db          store.Querier
	cache       *lruCache
	logger      *logger.Logger
	objectStore *objectstore.Client
}

func New(db store.Querier, l *logger.Logger) *Service {
	return &Service{db: db, cache: newLRUCache(cacheCapacity), logger: l}
}

// WithObjectStore attaches a presigner for download_url values that name an
// object-storage key (s3://bucket-relative/key) rather than a public URL.
func (s *Service) WithObjectStore(c *objectstore.Client) *Service {
	s.objectStore = c
	return s
}

// resolveDownloadURL turns an "s3://"-prefixed object key into a time-limited
// presigned GET URL. Values that are already a plain http(s) URL, or when no
// object store is configured, pass through unchanged.
func (s *Service) resolveDownloadURL(ctx context.Context, raw string) string {
	if s.objectStore == nil || !strings.HasPrefix(raw, "s3://") {
		return raw
	}
	key := strings.TrimPrefix(raw, "s3://")
	url, err := s.objectStore.PresignDownload(ctx, key)
	if err != nil {
		s.logger.Error("failed to presign model download url", "key", key, "error", err)
		return raw
	}
	return url
}

// AssignModel picks the best model for a device's (memtotal_gb, engine_type)
// pair. A device reporting engine_type=None, os_type=None, or memtotal_gb=0
// gets no assignment, per the catalog's exclusion rule.
func (s *Service) AssignModel(ctx context.Context, memtotalGB uint32, engineType store.EngineType, osType store.OSType) (ModelInfo, bool, error) {
	if engineType == store.EngineTypeNone || osType == store.OSTypeNone || memtotalGB == 0 {
		return ModelInfo{}, false, nil
	}

	key := cacheKey{memtotalGB: memtotalGB, engineType: int16(engineType)}
	if info, ok := s.cache.get(key); ok {
		metrics.CatalogLookupsTotal.WithLabelValues("hit").Inc()
		return info, true, nil
	}
	metrics.CatalogLookupsTotal.WithLabelValues("miss").Inc()

	active := true
	gpuMem := int32(memtotalGB)
	rows, err := s.db.GetModelsList(ctx, store.GetModelsListParams{
		IsActive:       &active,
		EngineType:     &engineType,
		MinGPUMemoryGB: &gpuMem,
	})
	if err != nil {
		return ModelInfo{}, false, err
	}
	if len(rows) == 0 {
		return ModelInfo{}, false, nil
	}

	// GetModelsList already orders min_gpu_memory_gb DESC NULLS LAST,
	// version_code DESC, created_at DESC: the first eligible row wins.
	info := toModelInfo(rows[0])
	info.DownloadURL = s.resolveDownloadURL(ctx, info.DownloadURL)
	s.cache.put(key, info)
	metrics.CatalogCacheSize.Set(float64(s.cache.len()))

	return info, true, nil
}

// CreateOrUpdateModel upserts a catalog entry and invalidates nothing: the
// cache is keyed by assignment outcome, not by model id, so a changed row
// is picked up once its cache entry naturally ages out under LRU pressure.
func (s *Service) CreateOrUpdateModel(ctx context.Context, arg store.CreateOrUpdateModelParams) (store.ClientModel, error) {
	return s.db.CreateOrUpdateModel(ctx, arg)
}

func (s *Service) ListModels(ctx context.Context, arg store.GetModelsListParams) ([]store.ClientModel, error) {
	rows, err := s.db.GetModelsList(ctx, arg)
	if err != nil {
		return nil, err
	}
	for i, m := range rows {
		if m.DownloadURL.Valid {
			rows[i].DownloadURL.String = s.resolveDownloadURL(ctx, m.DownloadURL.String)
		}
	}
	return rows, nil
}

func toModelInfo(m store.ClientModel) ModelInfo {
	info := ModelInfo{
		ID:          m.ID,
		Name:        m.Name,
		Version:     m.Version,
		VersionCode: m.VersionCode,
		EngineType:  m.EngineType,
	}
	if m.MinGPUMemoryGB.Valid {
		v := m.MinGPUMemoryGB.Int32
		info.MinGPUMemoryGB = &v
	}
	if m.DownloadURL.Valid {
		info.DownloadURL = m.DownloadURL.String
	}
	if m.Checksum.Valid {
		info.Checksum = m.Checksum.String
	}
	if m.ExpectedSize.Valid {
		info.ExpectedSize = m.ExpectedSize.Int64
	}
	return info
}
