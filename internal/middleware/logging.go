package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// WithRequestLogging logs every request once it has been served: method,
// path, status, response size, duration and the chi request id when present.
func WithRequestLogging(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", status),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
			}
			if id := middleware.GetReqID(r.Context()); id != "" {
				fields = append(fields, zap.String("request_id", id))
			}

			switch {
			case status >= http.StatusInternalServerError:
				log.Error("request served", fields...)
			case status >= http.StatusBadRequest:
				log.Warn("request served", fields...)
			default:
				log.Info("request served", fields...)
			}
		})
	}
}
