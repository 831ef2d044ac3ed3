// Package api exposes the metadata document and time window selections over
// HTTP.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/koba/tabledef/internal/metadata"
	"github.com/koba/tabledef/internal/query"
)

// Querier selects time windows of rows
type Querier interface {
	SelectWindow(ctx context.Context, w query.Window) (*query.Result, error)
}

func New(
	querier Querier,
	doc *metadata.Document,
	promReg *prometheus.Registry,
	log zerolog.Logger,
) *chi.Mux {
	corsMW := cors.Handler(cors.Options{
		AllowedOrigins: []string{"https://*", "http://*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
	})

	h := &omniHandler{
		querier: querier,
		doc:     doc,
		log:     log.With().Str("subsystem", "omni").Logger(),
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(corsMW)
	router.Use(RequestLogger(log, "/internal/metrics"))
	router.Route("/api/omni", func(r chi.Router) {
		r.Get("/", h.GetWindow)
		r.Get("/info", h.GetInfo)
	})
	router.Route("/internal", func(r chi.Router) {
		r.Handle("/metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))
	})

	return router
}

// NewServer wraps the router in an http.Server listening on addr
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:    addr,
		Handler: handler,
	}
}
