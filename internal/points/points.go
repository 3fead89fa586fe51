// Package points exposes the contribution-points aggregate as a single
// paginated HTTP endpoint.
package points

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JackRipper1888/GPUFabric/pkg/db/store"
	"github.com/JackRipper1888/GPUFabric/pkg/errors"
	"github.com/JackRipper1888/GPUFabric/pkg/logger"
)

const (
	minPage     = 1
	maxPage     = 100
	minPageSize = 1
	maxPageSize = 100

	dateLayout = "2006-01-02"
)

type Handler struct {
	db     store.Querier
	logger *logger.Logger
}

func NewHandler(db store.Querier, l *logger.Logger) *Handler {
	return &Handler{db: db, logger: l}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/v1/points", h.GetUserPoints)
}

// pointsRow is the JSON shape of one page row.
type pointsRow struct {
	ClientID   string  `json:"client_id"`
	ClientName string  `json:"client_name"`
	DeviceID   string  `json:"device_id"`
	Date       string  `json:"date"`
	Points     float64 `json:"points"`
}

type pointsResponse struct {
	Data       []pointsRow `json:"data"`
	Page       int32       `json:"page"`
	PageSize   int32       `json:"page_size"`
	TotalCount int64       `json:"total_count"`
	TotalPoints float64    `json:"total_points"`
}

func (h *Handler) GetUserPoints(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	userID, err := parseUUID(q.Get("user_id"))
	if err != nil {
		errors.Response(w, r, errors.ErrInvalidParams)
		return
	}

	page, err := parseIntDefault(q.Get("page"), 1)
	if err != nil || page < minPage || page > maxPage {
		errors.Response(w, r, errors.ErrInvalidParams)
		return
	}
	pageSize, err := parseIntDefault(q.Get("page_size"), 20)
	if err != nil || pageSize < minPageSize || pageSize > maxPageSize {
		errors.Response(w, r, errors.ErrInvalidParams)
		return
	}

	arg := store.GetUserPointsParams{
		UserID:   userID,
		Page:     int32(page),
		PageSize: int32(pageSize),
	}

	if v := q.Get("client_id"); v != "" {
		clientID, err := parseUUID(v)
		if err != nil {
			errors.Response(w, r, errors.ErrInvalidParams)
			return
		}
		arg.ClientID = &clientID
	}
	if v := q.Get("client_name"); v != "" {
		arg.ClientNameLike = &v
	}
	if v := q.Get("device_id"); v != "" {
		arg.DeviceID = &v
	}
	if v := q.Get("start_date"); v != "" {
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			errors.Response(w, r, errors.ErrInvalidParams)
			return
		}
		arg.StartDate = &t
	}
	if v := q.Get("end_date"); v != "" {
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			errors.Response(w, r, errors.ErrInvalidParams)
			return
		}
		arg.EndDate = &t
	}

	rows, total, err := h.db.GetUserPoints(r.Context(), arg)
	if err != nil {
		errors.Response(w, r, err)
		return
	}

	resp := pointsResponse{
		Data:       make([]pointsRow, 0, len(rows)),
		Page:       int32(page),
		PageSize:   int32(pageSize),
		TotalCount: total,
	}
	for _, row := range rows {
		resp.Data = append(resp.Data, pointsRow{
			ClientID:   uuidString(row.ClientID),
			ClientName: row.ClientName,
			DeviceID:   row.DeviceID,
			Date:       row.Date.Format(dateLayout),
			Points:     row.Points,
		})
		resp.TotalPoints = row.SumPoints
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("failed to encode points response", "error", err)
	}
}

func parseIntDefault(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}

func parseUUID(s string) (pgtype.UUID, error) {
	var u pgtype.UUID
	err := u.Scan(s)
	return u, err
}

func uuidString(u pgtype.UUID) string {
	if !u.Valid {
		return ""
	}
	s, _ := u.Value()
	str, _ := s.(string)
	return str
}
