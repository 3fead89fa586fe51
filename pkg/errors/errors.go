package errors

import (
	"encoding/json"
	"net/http"
	"runtime/debug"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/JackRipper1888/GPUFabric/pkg/appcontext"
	"github.com/JackRipper1888/GPUFabric/pkg/db/store"
)

// WebEncodeError is a standardized error wrapper, named for the ingestion
// kernel this service's error surface was grounded on.
type WebEncodeError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
}

func (e *WebEncodeError) Error() string {
	return e.Message
}

// Catalog
var (
	ErrNotFound        = &WebEncodeError{Code: "NOT_FOUND", Message: "Resource not found", HTTPStatus: 404}
	ErrClientNotFound  = &WebEncodeError{Code: "CLIENT_NOT_FOUND", Message: "Client not registered", HTTPStatus: 404}
	ErrModelNotFound   = &WebEncodeError{Code: "MODEL_NOT_FOUND", Message: "No compatible model found", HTTPStatus: 404}
	ErrInternal        = &WebEncodeError{Code: "INTERNAL_ERROR", Message: "Internal server error", HTTPStatus: 500}
	ErrInvalidParams   = &WebEncodeError{Code: "INVALID_PARAMS", Message: "Invalid parameters", HTTPStatus: 400}
	ErrChecksumInvalid = &WebEncodeError{Code: "CHECKSUM_INVALID", Message: "Downloaded artifact failed checksum verification", HTTPStatus: 422}
	ErrRateLimited     = &WebEncodeError{Code: "RATE_LIMITED", Message: "Too many requests", HTTPStatus: 429}
)

// Response writes the error as JSON to the response writer
func Response(w http.ResponseWriter, r *http.Request, err error) {
	var we *WebEncodeError
	if e, ok := err.(*WebEncodeError); ok {
		we = e
	} else {
		we = ErrInternal
		logInternalError(r, err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(we.HTTPStatus)
	json.NewEncoder(w).Encode(we)
}

func logInternalError(r *http.Request, originalErr error) {
	ctx := r.Context()
	l := appcontext.GetLogger(ctx)
	db := appcontext.GetQuerier(ctx)

	l.Error("Internal Server Error", "error", originalErr, "path", r.URL.Path)

	if db == nil {
		l.Warn("Cannot persist error: querier not in context")
		return
	}

	contextData := map[string]interface{}{
		"method": r.Method,
		"path":   r.URL.Path,
		"query":  r.URL.RawQuery,
		"ip":     r.RemoteAddr,
	}
	contextBytes, _ := json.Marshal(contextData)

	stack := string(debug.Stack())

	_, err := db.CreateErrorEvent(ctx, store.CreateErrorEventParams{
		SourceComponent: "api-server",
		Severity:        store.ErrorSeverityError,
		Message:         originalErr.Error(),
		StackTrace:      pgtype.Text{String: stack, Valid: true},
		ContextData:     contextBytes,
	})
	if err != nil {
		l.Error("Failed to persist internal error", "error", err)
	}
}
