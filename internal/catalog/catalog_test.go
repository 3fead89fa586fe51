package catalog

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JackRipper1888/GPUFabric/pkg/db/store"
	"github.com/JackRipper1888/GPUFabric/pkg/logger"
)

type fakeCatalogDB struct {
	store.Querier
	models    []store.ClientModel
	listCalls int
}

func (f *fakeCatalogDB) GetModelsList(ctx context.Context, arg store.GetModelsListParams) ([]store.ClientModel, error) {
	f.listCalls++
	return f.models, nil
}

func modelRow(id int32, minGPU int32, versionCode int64) store.ClientModel {
	return store.ClientModel{
		ID:             id,
		Name:           "llama-7b",
		Version:        "1.0",
		VersionCode:    versionCode,
		IsActive:       true,
		EngineType:     store.EngineTypeLlama,
		MinGPUMemoryGB: pgtype.Int4{Int32: minGPU, Valid: true},
	}
}

func TestAssignModel_ExcludesZeroOrNoneInputs(t *testing.T) {
	db := &fakeCatalogDB{models: []store.ClientModel{modelRow(1, 8, 1)}}
	s := New(db, logger.New("test"))

	_, ok, err := s.AssignModel(context.Background(), 0, store.EngineTypeLlama, store.OSTypeLinux)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = s.AssignModel(context.Background(), 24, store.EngineTypeNone, store.OSTypeLinux)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = s.AssignModel(context.Background(), 24, store.EngineTypeLlama, store.OSTypeNone)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, 0, db.listCalls)
}

func TestAssignModel_PicksFirstRowAndCaches(t *testing.T) {
	db := &fakeCatalogDB{models: []store.ClientModel{modelRow(1, 8, 2), modelRow(2, 8, 1)}}
	s := New(db, logger.New("test"))

	info, ok, err := s.AssignModel(context.Background(), 24, store.EngineTypeLlama, store.OSTypeLinux)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int32(1), info.ID)
	assert.Equal(t, 1, db.listCalls)

	// second lookup with the same key hits the cache, no second DB round trip
	_, ok, err = s.AssignModel(context.Background(), 24, store.EngineTypeLlama, store.OSTypeLinux)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, db.listCalls)
}

func TestAssignModel_DownloadURLPassesThroughWithoutObjectStore(t *testing.T) {
	row := modelRow(1, 8, 1)
	row.DownloadURL = pgtype.Text{String: "s3://models/llama-7b.bin", Valid: true}
	db := &fakeCatalogDB{models: []store.ClientModel{row}}
	s := New(db, logger.New("test"))

	info, ok, err := s.AssignModel(context.Background(), 24, store.EngineTypeLlama, store.OSTypeLinux)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "s3://models/llama-7b.bin", info.DownloadURL)
}

func TestAssignModel_NoEligibleModel(t *testing.T) {
	db := &fakeCatalogDB{models: nil}
	s := New(db, logger.New("test"))

	_, ok, err := s.AssignModel(context.Background(), 24, store.EngineTypeLlama, store.OSTypeLinux)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := newLRUCache(2)
	c.put(cacheKey{memtotalGB: 1, engineType: 1}, ModelInfo{ID: 1})
	c.put(cacheKey{memtotalGB: 2, engineType: 1}, ModelInfo{ID: 2})

	// touch the first so the second becomes least recently used
	_, _ = c.get(cacheKey{memtotalGB: 1, engineType: 1})

	c.put(cacheKey{memtotalGB: 3, engineType: 1}, ModelInfo{ID: 3})

	_, ok := c.get(cacheKey{memtotalGB: 2, engineType: 1})
	assert.False(t, ok)

	v, ok := c.get(cacheKey{memtotalGB: 1, engineType: 1})
	assert.True(t, ok)
	assert.Equal(t, int32(1), v.ID)

	assert.Equal(t, 2, c.len())
}
