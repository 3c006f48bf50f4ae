package main

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/postkeeper/postkeeper/internal/config"
	"github.com/postkeeper/postkeeper/internal/handler"
	"github.com/postkeeper/postkeeper/internal/metrics"
	"github.com/postkeeper/postkeeper/internal/middleware"
)

type routerDeps struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.InMemoryRecorder
	health  *handler.HealthHandler
	posts   *handler.PostHandler
	auth    middleware.AuthConfig
	limiter middleware.Limiter
}

// newRouter wires middleware and routes.
func newRouter(d routerDeps) *chi.Mux {
	h := handler.New()
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(d.logger, d.metrics))
	r.Use(middleware.Recoverer(d.logger))
	r.Use(middleware.Security(middleware.SecurityConfig{HSTS: d.cfg.IsProduction()}))
	r.Use(middleware.CORS(middleware.DefaultCORSConfig(d.cfg.GetCORSAllowedOrigins())))
	r.Use(middleware.MaxBodySize(d.cfg.MaxRequestBodySize))

	r.Get("/", h.Hello)
	r.Get("/healthz", d.health.Healthz)
	r.Get("/readyz", d.health.Readyz)
	r.Get("/metrics", handler.NewMetricsHandler(d.metrics).Metrics)

	r.Route("/Posts", func(r chi.Router) {
		r.Use(middleware.Auth(d.auth))
		r.Use(middleware.RateLimit(middleware.RateLimitConfig{
			Logger:            d.logger,
			Limiter:           d.limiter,
			Metrics:           d.metrics,
			Enabled:           d.cfg.RateLimitEnabled,
			RequestsPerMinute: d.cfg.RateLimitRPM,
			Burst:             d.cfg.RateLimitBurst,
		}))
		r.Use(middleware.RequireMethodScope())

		r.Get("/", d.posts.List)
		r.Post("/", d.posts.Create)
		r.Get("/filter", d.posts.Filter)
		r.Get("/id/{id}", d.posts.Get)
		r.Put("/id/{id}", d.posts.Update)
		r.Delete("/id/{id}", d.posts.Delete)
	})

	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)

	return r
}
