package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"docpipe/cmd/app/types"

	"github.com/google/uuid"
)

// RequestIDHeader echoes the request id back to the caller.
const RequestIDHeader = "X-Request-Id"

type contextKey struct{}

// RequestID returns the id RequestTrace stored in ctx.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(contextKey{}).(string)
	return id
}

func RequestTrace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.NewUUID()
		if err != nil {
			err := types.InternalError(err).Render(w, r)
			if err != nil {
				slog.Error("Failed rendering internal error response due to failed UUID generation",
					slog.String("error", err.Error()),
				)
			}
			return
		}

		start := time.Now()
		w.Header().Set(RequestIDHeader, id.String())
		ctx := context.WithValue(r.Context(), contextKey{}, id.String())
		next.ServeHTTP(w, r.WithContext(ctx))

		slog.Debug("Request served",
			slog.String("request_id", id.String()),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Duration("duration", time.Since(start)),
		)
	})
}
