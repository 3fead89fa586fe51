package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/JackRipper1888/GPUFabric/internal/catalog"
	"github.com/JackRipper1888/GPUFabric/pkg/db/store"
	"github.com/JackRipper1888/GPUFabric/pkg/logger"
)

type noopQuerier struct{ store.Querier }

func TestNewRouter_Healthz(t *testing.T) {
	db := noopQuerier{}
	svc := catalog.New(db, logger.New("test"))
	r := NewRouter(db, svc, logger.New("test"))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())
}

func TestNewRouter_MetricsEndpoint(t *testing.T) {
	db := noopQuerier{}
	svc := catalog.New(db, logger.New("test"))
	r := NewRouter(db, svc, logger.New("test"))

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestNewRouter_PointsMissingUserIDReturns400(t *testing.T) {
	db := noopQuerier{}
	svc := catalog.New(db, logger.New("test"))
	r := NewRouter(db, svc, logger.New("test"))

	req := httptest.NewRequest(http.MethodGet, "/v1/points", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
