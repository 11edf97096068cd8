// Package httptransport assembles the HTTP surface: global middleware, the
// feature routers, and the operational endpoints.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"prato/internal/platform/middleware"
	"prato/internal/transport/http/shared"
)

// FeatureHandler is implemented by each feature's handler package.
type FeatureHandler interface {
	Register(r chi.Router)
}

// HealthCheck reports liveness of one backing dependency.
type HealthCheck func(ctx context.Context) error

// Deps carries everything the router needs from main.
type Deps struct {
	Logger   *slog.Logger
	Features []FeatureHandler
	// Health maps a dependency name to its check; nil checks are skipped.
	Health map[string]HealthCheck
}

// NewRouter wires all public endpoints.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.Logger(deps.Logger))

	for _, feature := range deps.Features {
		feature.Register(r)
	}

	r.Get("/healthz", handleHealth(deps))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func handleHealth(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ok", Checks: make(map[string]string, len(deps.Health))}
		status := http.StatusOK

		for name, check := range deps.Health {
			if check == nil {
				continue
			}
			if err := check(r.Context()); err != nil {
				resp.Status = "degraded"
				resp.Checks[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}

		shared.WriteJSON(w, status, resp)
	}
}
