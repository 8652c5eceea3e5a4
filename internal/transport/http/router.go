// Package httptransport assembles the full route table. Routes are wired
// statically at startup; a feature that is not configured is simply not
// mounted, never probed for at request time.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	adminhandler "ssoportal/internal/admin/handler"
	"ssoportal/internal/clients"
	"ssoportal/internal/flow"
	"ssoportal/internal/platform/metrics"
	"ssoportal/internal/platform/middleware"
	tenanthandler "ssoportal/internal/tenant/handler"
	userhandler "ssoportal/internal/user/handler"
)

const requestTimeout = 30 * time.Second

// Deps carries everything the router mounts.
type Deps struct {
	Tenants *tenanthandler.Handler
	Admins  *adminhandler.Handler
	Users   *userhandler.Handler
	Clients *clients.Handler
	Flows   *flow.Handler
	Health  func() error

	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// NewRouter builds the static route table.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(d.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Logger(d.Logger))
	r.Use(middleware.Latency(d.Metrics))

	r.Get("/healthz", handleHealth(d.Health))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Browser-facing challenge flows; the provider-issued challenge token is
	// the only credential these carry.
	r.Get("/login", d.Flows.ShowLogin)
	r.Post("/login", d.Flows.SubmitLogin)
	r.Get("/consent", d.Flows.ShowConsent)
	r.Post("/consent", d.Flows.SubmitConsent)
	r.Get("/logout", d.Flows.ShowLogout)
	r.Post("/logout", d.Flows.SubmitLogout)
	r.Get("/error", d.Flows.ShowError)

	// Admin API.
	r.Route("/api", func(api chi.Router) {
		api.Use(middleware.Timeout(requestTimeout))
		d.Admins.Register(api)
		d.Tenants.Register(api)
		d.Users.Register(api)
		d.Clients.Register(api)
	})

	return r
}

func handleHealth(check func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			if err := check(); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"unhealthy"}`))
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}
