package points

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JackRipper1888/GPUFabric/pkg/db/store"
	"github.com/JackRipper1888/GPUFabric/pkg/logger"
)

type fakeDB struct {
	store.Querier
	rows  []store.UserPointsRow
	total int64
	err   error
	lastArg store.GetUserPointsParams
}

func (f *fakeDB) GetUserPoints(ctx context.Context, arg store.GetUserPointsParams) ([]store.UserPointsRow, int64, error) {
	f.lastArg = arg
	return f.rows, f.total, f.err
}

func newRouter(db *fakeDB) http.Handler {
	r := chi.NewRouter()
	NewHandler(db, logger.New("test")).Register(r)
	return r
}

func validUserID() string {
	return "00112233-4455-6677-8899-aabbccddeeff"
}

func TestGetUserPoints_MissingUserIDReturns400(t *testing.T) {
	db := &fakeDB{}
	req := httptest.NewRequest(http.MethodGet, "/v1/points", nil)
	rr := httptest.NewRecorder()

	newRouter(db).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestGetUserPoints_PageOutOfRangeReturns400(t *testing.T) {
	db := &fakeDB{}
	req := httptest.NewRequest(http.MethodGet, "/v1/points?user_id="+validUserID()+"&page=0", nil)
	rr := httptest.NewRecorder()

	newRouter(db).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestGetUserPoints_PageSizeOutOfRangeReturns400(t *testing.T) {
	db := &fakeDB{}
	req := httptest.NewRequest(http.MethodGet, "/v1/points?user_id="+validUserID()+"&page_size=101", nil)
	rr := httptest.NewRecorder()

	newRouter(db).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestGetUserPoints_BadDateReturns400(t *testing.T) {
	db := &fakeDB{}
	req := httptest.NewRequest(http.MethodGet, "/v1/points?user_id="+validUserID()+"&start_date=not-a-date", nil)
	rr := httptest.NewRecorder()

	newRouter(db).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestGetUserPoints_Success(t *testing.T) {
	var clientID pgtype.UUID
	require.NoError(t, clientID.Scan(validUserID()))

	db := &fakeDB{
		rows: []store.UserPointsRow{
			{ClientID: clientID, ClientName: "rig-1", DeviceID: validUserID() + ":0", Date: time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC), Points: 2.4, TotalCount: 1, SumPoints: 2.4},
		},
		total: 1,
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/points?user_id="+validUserID()+"&page=1&page_size=10", nil)
	rr := httptest.NewRecorder()

	newRouter(db).ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var resp pointsResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.TotalCount)
	assert.Equal(t, 2.4, resp.TotalPoints)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "rig-1", resp.Data[0].ClientName)
	assert.Equal(t, "2026-07-01", resp.Data[0].Date)

	assert.True(t, db.lastArg.UserID.Valid)
	assert.Equal(t, int32(1), db.lastArg.Page)
	assert.Equal(t, int32(10), db.lastArg.PageSize)
}

func TestGetUserPoints_DefaultsPageAndPageSize(t *testing.T) {
	db := &fakeDB{}
	req := httptest.NewRequest(http.MethodGet, "/v1/points?user_id="+validUserID(), nil)
	rr := httptest.NewRecorder()

	newRouter(db).ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, int32(1), db.lastArg.Page)
	assert.Equal(t, int32(20), db.lastArg.PageSize)
}
