package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/VissentvNoord/lobby-system/internal/directory"
	"github.com/VissentvNoord/lobby-system/internal/relay"
	"github.com/VissentvNoord/lobby-system/internal/ws"
)

type Deps struct {
	Directory *directory.Service
	Relay     *relay.Registry
	Bridge    *ws.Bridge
	// Limiter is optional; nil disables rate limiting.
	Limiter  *RateLimiter
	Registry *prometheus.Registry
	Logger   *zap.Logger
}

func SetupRoutes(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Registry == nil {
		d.Registry = prometheus.NewRegistry()
	}
	api := &API{dir: d.Directory, relay: d.Relay, logger: d.Logger.Named("httpapi")}
	metrics := NewMetrics(d.Registry)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	// Public routes
	r.Get("/healthz", Healthz)
	r.Handle("/metrics", promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{}))

	guarded := func(r chi.Router) {
		r.Use(metrics.Instrument)
		if d.Limiter != nil {
			r.Use(api.Limit(d.Limiter))
		}
	}

	r.Route("/lobbies", func(r chi.Router) {
		guarded(r)
		r.Post("/", api.CreateLobby)
		r.Get("/", api.QueryLobbies)
		r.Post("/join/code", api.JoinByCode)
		r.Post("/join/quick", api.QuickJoin)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", api.GetLobby)
			r.Patch("/", api.UpdateLobby)
			r.Delete("/", api.DeleteLobby)
			r.Post("/heartbeat", api.Heartbeat)
			r.Post("/players", api.JoinLobby)
			r.Patch("/players/{playerID}", api.UpdatePlayer)
			r.Delete("/players/{playerID}", api.RemovePlayer)
		})
	})

	r.Route("/relay", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			guarded(r)
			r.Post("/allocations", api.Allocate)
			r.Post("/allocations/{id}/joincode", api.JoinCode)
			r.Post("/join", api.RelayJoin)
		})
		if d.Bridge != nil {
			// Long-lived sockets stay out of the request metrics and limiter.
			r.Get("/ws/{id}", d.Bridge.Handler())
		}
	})
	return r
}
