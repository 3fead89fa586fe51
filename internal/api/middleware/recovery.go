package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/JackRipper1888/GPUFabric/pkg/db/store"
	"github.com/JackRipper1888/GPUFabric/pkg/errors"
	"github.com/JackRipper1888/GPUFabric/pkg/logger"
)

// Recovery returns a middleware that recovers from panics, logs the error, and returns a 500 status.
func Recovery(db store.Querier, l *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					stack := string(debug.Stack())

					err, ok := rvr.(error)
					if !ok {
						err = fmt.Errorf("%v", rvr)
					}
					l.Error("PANIC RECOVERED", "error", err, "stack", stack)

					contextData := map[string]interface{}{
						"method": r.Method,
						"path":   r.URL.Path,
						"ip":     getClientIP(r),
					}
					contextBytes, _ := json.Marshal(contextData)

					createParams := store.CreateErrorEventParams{
						SourceComponent: "api-server:panic",
						Severity:        store.ErrorSeverityFatal,
						Message:         err.Error(),
						StackTrace:      pgtype.Text{String: stack, Valid: true},
						ContextData:     contextBytes,
					}

					if _, dbErr := db.CreateErrorEvent(r.Context(), createParams); dbErr != nil {
						l.Error("Failed to persist panic to DB", "error", dbErr)
					}

					errors.Response(w, r, errors.ErrInternal)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

func getClientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return ip
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}
