// Package logger provides the process-wide structured logger built on
// Uber zap, plus an HTTP middleware that logs every handled request.
package logger

import (
	"errors"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"
)

// Log is the global SugaredLogger used across the application.
// It must be initialized via Init() before use.
var Log *zap.SugaredLogger

// Init configures the global logger with the given level
// ("debug", "info", "warn", "error", ...).
func Init(level string) error {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return err
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.Level = lvl
	zl, err := cfg.Build()
	if err != nil {
		return err
	}
	Log = zl.Sugar()

	return nil
}

// Sync flushes buffered log entries. Call it on shutdown.
func Sync() error {
	if err := Log.Sync(); err != nil && !errors.Is(err, os.ErrInvalid) {
		return err
	}

	return nil
}

type responseStats struct {
	status int
	size   int
}

type statsResponseWriter struct {
	http.ResponseWriter
	stats *responseStats
}

func (w *statsResponseWriter) Write(b []byte) (int, error) {
	size, err := w.ResponseWriter.Write(b)
	w.stats.size += size
	return size, err
}

func (w *statsResponseWriter) WriteHeader(statusCode int) {
	w.ResponseWriter.WriteHeader(statusCode)
	w.stats.status = statusCode
}

// WithLoggingHTTPMiddleware wraps a handler and logs method, URI, status,
// response size and handling duration of each request.
func WithLoggingHTTPMiddleware(h http.Handler) http.Handler {
	logFn := func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		stats := &responseStats{}
		sw := statsResponseWriter{
			ResponseWriter: w,
			stats:          stats,
		}
		h.ServeHTTP(&sw, r)

		Log.Infoln(
			"uri", r.RequestURI,
			"method", r.Method,
			"status", stats.status,
			"duration", time.Since(start),
			"size", stats.size,
		)
	}

	return http.HandlerFunc(logFn)
}
