// Package http assembles the service's HTTP surface: the governance API
// routes plus health and metrics endpoints.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	cyclehandler "modelgov/internal/cycle/handler"
	membershiphandler "modelgov/internal/membership/handler"
)

// Handlers carries the module handlers the router mounts.
type Handlers struct {
	Membership *membershiphandler.Handler
	Cycle      *cyclehandler.Handler
}

// NewRouter mounts all routes under /api/v1 and wires the operational
// endpoints.
func NewRouter(h Handlers) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(api chi.Router) {
		h.Membership.Register(api)
		h.Cycle.Register(api)
	})

	return r
}
