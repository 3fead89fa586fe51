package catalog

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JackRipper1888/GPUFabric/pkg/db/store"
	"github.com/JackRipper1888/GPUFabric/pkg/errors"
	"github.com/JackRipper1888/GPUFabric/pkg/logger"
)

// Handler exposes the catalog over HTTP: a read endpoint for the dynamic
// predicate listing, and a write endpoint for the upsert-by-(name,version).
type Handler struct {
	svc    *Service
	logger *logger.Logger
}

func NewHandler(svc *Service, l *logger.Logger) *Handler {
	return &Handler{svc: svc, logger: l}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/v1/models", h.ListModels)
	r.Post("/v1/models", h.CreateOrUpdateModel)
}

type modelResponse struct {
	ID             int32   `json:"id"`
	Name           string  `json:"name"`
	Version        string  `json:"version"`
	VersionCode    int64   `json:"version_code"`
	IsActive       bool    `json:"is_active"`
	EngineType     int16   `json:"engine_type"`
	MinGPUMemoryGB *int32  `json:"min_gpu_memory_gb,omitempty"`
	DownloadURL    string  `json:"download_url,omitempty"`
	Checksum       string  `json:"checksum,omitempty"`
	ExpectedSize   int64   `json:"expected_size,omitempty"`
}

func (h *Handler) ListModels(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	arg := store.GetModelsListParams{}

	if v := q.Get("is_active"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errors.Response(w, r, errors.ErrInvalidParams)
			return
		}
		arg.IsActive = &b
	}
	if v := q.Get("engine_type"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errors.Response(w, r, errors.ErrInvalidParams)
			return
		}
		et := store.EngineType(n)
		arg.EngineType = &et
	}
	if v := q.Get("min_gpu_memory_gb"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errors.Response(w, r, errors.ErrInvalidParams)
			return
		}
		n32 := int32(n)
		arg.MinGPUMemoryGB = &n32
	}

	rows, err := h.svc.ListModels(r.Context(), arg)
	if err != nil {
		errors.Response(w, r, err)
		return
	}

	resp := make([]modelResponse, 0, len(rows))
	for _, m := range rows {
		resp = append(resp, toModelResponse(m))
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("failed to encode models response", "error", err)
	}
}

type createModelRequest struct {
	Name           string `json:"name"`
	Version        string `json:"version"`
	VersionCode    int64  `json:"version_code"`
	IsActive       *bool  `json:"is_active"`
	MinMemoryMB    *int32 `json:"min_memory_mb"`
	EngineType     int16  `json:"engine_type"`
	MinGPUMemoryGB *int32 `json:"min_gpu_memory_gb"`
	DownloadURL    string `json:"download_url"`
	Checksum       string `json:"checksum"`
	ExpectedSize   *int64 `json:"expected_size"`
}

func (h *Handler) CreateOrUpdateModel(w http.ResponseWriter, r *http.Request) {
	var req createModelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" || req.Version == "" {
		errors.Response(w, r, errors.ErrInvalidParams)
		return
	}

	arg := store.CreateOrUpdateModelParams{
		Name:        req.Name,
		Version:     req.Version,
		VersionCode: req.VersionCode,
		IsActive:    req.IsActive,
		EngineType:  store.EngineType(req.EngineType),
		DownloadURL: pgtype.Text{String: req.DownloadURL, Valid: req.DownloadURL != ""},
		Checksum:    pgtype.Text{String: req.Checksum, Valid: req.Checksum != ""},
	}
	if req.MinMemoryMB != nil {
		arg.MinMemoryMB = pgtype.Int4{Int32: *req.MinMemoryMB, Valid: true}
	}
	if req.MinGPUMemoryGB != nil {
		arg.MinGPUMemoryGB = pgtype.Int4{Int32: *req.MinGPUMemoryGB, Valid: true}
	}
	if req.ExpectedSize != nil {
		arg.ExpectedSize = pgtype.Int8{Int64: *req.ExpectedSize, Valid: true}
	}

	m, err := h.svc.CreateOrUpdateModel(r.Context(), arg)
	if err != nil {
		errors.Response(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(toModelResponse(m)); err != nil {
		h.logger.Error("failed to encode model response", "error", err)
	}
}

func toModelResponse(m store.ClientModel) modelResponse {
	resp := modelResponse{
		ID:          m.ID,
		Name:        m.Name,
		Version:     m.Version,
		VersionCode: m.VersionCode,
		IsActive:    m.IsActive,
		EngineType:  int16(m.EngineType),
	}
	if m.MinGPUMemoryGB.Valid {
		v := m.MinGPUMemoryGB.Int32
		resp.MinGPUMemoryGB = &v
	}
	if m.DownloadURL.Valid {
		resp.DownloadURL = m.DownloadURL.String
	}
	if m.Checksum.Valid {
		resp.Checksum = m.Checksum.String
	}
	if m.ExpectedSize.Valid {
		resp.ExpectedSize = m.ExpectedSize.Int64
	}
	return resp
}
