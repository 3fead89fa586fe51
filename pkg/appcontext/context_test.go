package appcontext

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/JackRipper1888/GPUFabric/pkg/db/store"
	"github.com/JackRipper1888/GPUFabric/pkg/logger"
	"github.com/stretchr/testify/assert"
)

// MockQuerier is a mock implementation of store.Querier for testing
type MockQuerier struct{}

var _ store.Querier = (*MockQuerier)(nil)

func (m *MockQuerier) UpsertClient(ctx context.Context, arg store.UpsertClientParams) error {
	return nil
}
func (m *MockQuerier) InsertPointInTime(ctx context.Context, arg store.InsertPointInTimeParams) (store.PointInTime, error) {
	return store.PointInTime{}, nil
}
func (m *MockQuerier) UpsertClientDailyStats(ctx context.Context, arg store.UpsertClientDailyStatsParams) error {
	return nil
}
func (m *MockQuerier) UpsertDeviceDailyStats(ctx context.Context, arg store.UpsertDeviceDailyStatsParams) error {
	return nil
}
func (m *MockQuerier) MarkStaleClientsOffline(ctx context.Context, cutoff time.Time) ([]pgtype.UUID, error) {
	return nil, nil
}
func (m *MockQuerier) CreateOrUpdateModel(ctx context.Context, arg store.CreateOrUpdateModelParams) (store.ClientModel, error) {
	return store.ClientModel{}, nil
}
func (m *MockQuerier) GetModelsList(ctx context.Context, arg store.GetModelsListParams) ([]store.ClientModel, error) {
	return nil, nil
}
func (m *MockQuerier) GetUserPoints(ctx context.Context, arg store.GetUserPointsParams) ([]store.UserPointsRow, int64, error) {
	return nil, 0, nil
}
func (m *MockQuerier) CreateErrorEvent(ctx context.Context, arg store.CreateErrorEventParams) (store.ErrorEvent, error) {
	return store.ErrorEvent{}, nil
}

func TestGetLogger_WithLogger(t *testing.T) {
	l := logger.New("test")
	ctx := context.WithValue(context.Background(), LoggerKey, l)

	result := GetLogger(ctx)

	assert.NotNil(t, result)
	assert.Equal(t, l, result)
}

func TestGetLogger_WithoutLogger(t *testing.T) {
	ctx := context.Background()

	result := GetLogger(ctx)

	assert.NotNil(t, result)
}

func TestGetLogger_WrongType(t *testing.T) {
	ctx := context.WithValue(context.Background(), LoggerKey, "not a logger")

	result := GetLogger(ctx)

	assert.NotNil(t, result)
}

func TestGetQuerier_WithQuerier(t *testing.T) {
	q := &MockQuerier{}
	ctx := context.WithValue(context.Background(), QuerierKey, q)

	result := GetQuerier(ctx)

	assert.NotNil(t, result)
	assert.Equal(t, q, result)
}

func TestGetQuerier_WithoutQuerier(t *testing.T) {
	ctx := context.Background()

	result := GetQuerier(ctx)

	assert.Nil(t, result)
}

func TestGetQuerier_WrongType(t *testing.T) {
	ctx := context.WithValue(context.Background(), QuerierKey, "not a querier")

	result := GetQuerier(ctx)

	assert.Nil(t, result)
}

func TestWithLogger(t *testing.T) {
	l := logger.New("test")
	ctx := context.Background()

	result := WithLogger(ctx, l)

	assert.NotNil(t, result)
	storedLogger := result.Value(LoggerKey)
	assert.Equal(t, l, storedLogger)
}

func TestWithQuerier(t *testing.T) {
	q := &MockQuerier{}
	ctx := context.Background()

	result := WithQuerier(ctx, q)

	assert.NotNil(t, result)
	storedQuerier := result.Value(QuerierKey)
	assert.Equal(t, q, storedQuerier)
}

func TestWithLogger_ChainedContext(t *testing.T) {
	l1 := logger.New("first")
	l2 := logger.New("second")
	ctx := context.Background()

	ctx = WithLogger(ctx, l1)
	ctx = WithLogger(ctx, l2)

	result := GetLogger(ctx)
	assert.Equal(t, l2, result)
}

func TestWithQuerier_ChainedContext(t *testing.T) {
	q1 := &MockQuerier{}
	q2 := &MockQuerier{}
	ctx := context.Background()

	ctx = WithQuerier(ctx, q1)
	ctx = WithQuerier(ctx, q2)

	result := GetQuerier(ctx)
	assert.Equal(t, q2, result)
}

func TestContextKey_Constants(t *testing.T) {
	assert.Equal(t, contextKey("logger"), LoggerKey)
	assert.Equal(t, contextKey("querier"), QuerierKey)
}

func TestCombinedContext(t *testing.T) {
	l := logger.New("test")
	q := &MockQuerier{}
	ctx := context.Background()

	ctx = WithLogger(ctx, l)
	ctx = WithQuerier(ctx, q)

	resultLogger := GetLogger(ctx)
	resultQuerier := GetQuerier(ctx)

	assert.Equal(t, l, resultLogger)
	assert.Equal(t, q, resultQuerier)
}
