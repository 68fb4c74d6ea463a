package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/fpang/tripstory/internal/metrics"
)

// withLogging logs every API request and emits per-request EMF metrics with
// the matched route pattern as the Endpoint dimension.
func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		if !strings.HasPrefix(r.URL.Path, "/api/") {
			return
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		endpoint := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			endpoint = rc.RoutePattern()
		}

		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Str("requestId", middleware.GetReqID(r.Context())).
			Dur("duration", time.Since(start)).
			Msg("API request")

		metrics.New(metrics.Namespace).
			Dimension("Endpoint", endpoint).
			Since("RequestLatencyMs", start).
			Count("RequestCount").
			Property("method", r.Method).
			Property("statusCode", status).
			Flush()
	})
}
