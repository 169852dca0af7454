// Package middleware provides reusable HTTP middleware for the API server.
package middleware

import (
	"log/slog"
	"net/http"
	"time"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// wrappedWriter captures the status code and body size written by downstream handlers.
type wrappedWriter struct {
	http.ResponseWriter
	statusCode int
	written    int64
}

func newWrappedWriter(w http.ResponseWriter) *wrappedWriter {
	return &wrappedWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *wrappedWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *wrappedWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *wrappedWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Logger logs method, path, status, size and duration for every request.
// 4xx responses log at warn, 5xx at error.
func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := newWrappedWriter(w)
			next.ServeHTTP(ww, r)

			level := slog.LevelInfo
			switch {
			case ww.statusCode >= 500:
				level = slog.LevelError
			case ww.statusCode >= 400:
				level = slog.LevelWarn
			}

			logger.LogAttrs(r.Context(), level, "http request",
				slog.String("request_id", chiMiddleware.GetReqID(r.Context())),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.statusCode),
				slog.Int64("bytes", ww.written),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}
