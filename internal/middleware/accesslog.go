// internal/middleware/accesslog.go
//
// Access-log middleware for the serve front door.
//
// Emits one structured zap entry per request with the path the client asked
// for, the path after url rewriting, the status, and the duration.  The
// entry is written after next returns, so the rewrite middleware must sit
// *inside* this one for "path" to show the original request path.
//
// Notes
// -----
// • Request ids come from chi's RequestID middleware when it runs first.
// • 5xx responses log at WARN, everything else at INFO.
// • Oxford commas, two spaces after periods.

package middleware

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// AccessLog returns a middleware that logs every request to log.
func AccessLog(log *zap.SugaredLogger) func(http.Handler) http.Handler {
	if log == nil {
		log = zap.S()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			path := r.URL.Path
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			fields := []any{
				"method", r.Method,
				"path", path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
			}
			if rid := chimw.GetReqID(r.Context()); rid != "" {
				fields = append(fields, "request_id", rid)
			}
			if r.URL.Path != path {
				fields = append(fields, "rewritten", r.URL.Path)
			}
			if status >= http.StatusInternalServerError {
				log.Warnw("request", fields...)
				return
			}
			log.Infow("request", fields...)
		})
	}
}
