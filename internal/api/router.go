// Package api assembles the chi router for the points and catalog HTTP
// surface, the only HTTP endpoints this service exposes.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/JackRipper1888/GPUFabric/internal/catalog"
	"github.com/JackRipper1888/GPUFabric/internal/metrics"
	apimiddleware "github.com/JackRipper1888/GPUFabric/internal/api/middleware"
	"github.com/JackRipper1888/GPUFabric/internal/points"
	"github.com/JackRipper1888/GPUFabric/pkg/db/store"
	"github.com/JackRipper1888/GPUFabric/pkg/logger"
)

// NewRouter wires the recovery/CORS/rate-limit middleware stack and the
// points/catalog handlers onto a fresh chi router.
func NewRouter(db store.Querier, catalogSvc *catalog.Service, l *logger.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(apimiddleware.InjectDependencies(db, l))
	r.Use(apimiddleware.Recovery(db, l))
	r.Use(apimiddleware.CORS)

	rateLimiter := apimiddleware.DefaultRateLimiter()
	r.Use(apimiddleware.RateLimit(rateLimiter))

	points.NewHandler(db, l).Register(r)
	catalog.NewHandler(catalogSvc, l).Register(r)

	r.Handle("/metrics", metrics.Handler())
	r.Get("/healthz", healthz)

	return r
}

func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
