package ui

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"goodsam/internal"
)

// Ops is the operational endpoint set: liveness and Prometheus metrics
type Ops struct {
	router *chi.Mux
	logger *internal.Logger
}

// NewOps creates the ops router
func NewOps(logger *internal.Logger) *Ops {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	o := &Ops{router: chi.NewRouter(), logger: logger}
	o.setupMiddleware()
	o.setupRoutes()
	return o
}

func (o *Ops) setupMiddleware() {
	o.router.Use(middleware.Recoverer)
}

func (o *Ops) setupRoutes() {
	o.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	o.router.Handle("/metrics", promhttp.Handler())
}

// Handler returns the HTTP handler
func (o *Ops) Handler() http.Handler {
	return o.router
}

// Start serves on addr until ctx is done
func (o *Ops) Start(ctx context.Context, addr string) error {
	return serve(ctx, addr, o.router, o.logger, "Ops")
}
