package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// statusWriter records the status, size and error message of a response.
type statusWriter struct {
	middleware.WrapResponseWriter
	errorMessage string
}

func (w *statusWriter) SetErrorMessage(message string) {
	w.errorMessage = message
}

func requestLoggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{WrapResponseWriter: middleware.NewWrapResponseWriter(w, r.ProtoMajor)}

			next.ServeHTTP(sw, r)

			status := sw.Status()
			if status == 0 {
				status = http.StatusOK
			}
			attrs := append(requestAttrs(r),
				"status", status,
				"bytes", sw.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
			)
			if sw.errorMessage != "" {
				attrs = append(attrs, "error_message", sw.errorMessage)
			}

			level := slog.LevelInfo
			switch {
			case status >= http.StatusInternalServerError:
				level = slog.LevelError
			case status >= http.StatusBadRequest:
				level = slog.LevelWarn
			}
			logger.Log(r.Context(), level, "http request completed", attrs...)
		})
	}
}

// recoveryLoggingMiddleware turns a handler panic into a logged 500.
func recoveryLoggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				recovered := recover()
				if recovered == nil {
					return
				}
				if recovered == http.ErrAbortHandler {
					panic(recovered)
				}
				logger.Error("panic recovered", append(requestAttrs(r),
					"panic", fmt.Sprint(recovered),
					"stack", string(debug.Stack()),
				)...)
				if sw, ok := w.(interface{ Status() int }); ok && sw.Status() != 0 {
					return
				}
				writeErrorResponse(w, r, fmt.Errorf("internal server error"))
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func requestAttrs(r *http.Request) []any {
	return []any{
		"request_id", middleware.GetReqID(r.Context()),
		"method", r.Method,
		"path", r.URL.Path,
		"route", routePattern(r),
		"query", r.URL.RawQuery,
		"remote_ip", r.RemoteAddr,
		"user_agent", r.UserAgent(),
	}
}

func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return ""
	}
	return rctx.RoutePattern()
}
