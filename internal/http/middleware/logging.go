package middleware

import (
	"net/http"
	"time"

	"habits/internal/logger"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// RequestLog writes one entry per request once the handler returns.
func RequestLog(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			kv := []interface{}{
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"took", time.Since(start),
				"request_id", chimw.GetReqID(r.Context()),
			}
			if status >= http.StatusInternalServerError {
				log.Error("http request", kv...)
				return
			}
			log.Debug("http request", kv...)
		})
	}
}
