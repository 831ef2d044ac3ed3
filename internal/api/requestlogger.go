package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/rs/zerolog"

	"github.com/koba/tabledef/internal/query"
)

type requestInfoKey struct{}

// requestInfo collects what handlers resolved while serving a request
type requestInfo struct {
	window *query.Window
}

// annotateWindow records the parsed window for the request log line
func annotateWindow(ctx context.Context, w query.Window) {
	if info, ok := ctx.Value(requestInfoKey{}).(*requestInfo); ok {
		info.window = &w
	}
}

// RequestLogger logs one line per request, except for the paths in
// pathFilters. Window requests also log the resolved time bounds.
func RequestLogger(logger zerolog.Logger, pathFilters ...string) func(next http.Handler) http.Handler {
	skip := make(map[string]bool, len(pathFilters))
	for _, p := range pathFilters {
		skip[p] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skip[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			info := &requestInfo{}
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			started := time.Now()

			next.ServeHTTP(ww, r.WithContext(context.WithValue(r.Context(), requestInfoKey{}, info)))

			event := logger.Info().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("remote_ip", r.RemoteAddr).
				Str("method", r.Method).
				Str("url", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes_out", ww.BytesWritten()).
				Dur("latency", time.Since(started))

			if window := info.window; window != nil {
				if window.From != nil {
					event = event.Time("from", *window.From)
				}
				if window.To != nil {
					event = event.Time("to", *window.To)
				}
				if len(window.Fields) > 0 {
					event = event.Strs("fields", window.Fields)
				}
			}

			event.Msg("incoming_request")
		})
	}
}
