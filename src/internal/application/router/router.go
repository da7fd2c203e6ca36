// Package router wires the HTTP routes and middleware chain of the
// database service.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hackit-taiwan/database-service/src/internal/application/handler"
	"github.com/hackit-taiwan/database-service/src/internal/application/middleware"
	"github.com/hackit-taiwan/database-service/src/internal/infrastructure/security"
)

// Deps are the components the router composes.
type Deps struct {
	Users  *handler.UserHandler
	Avatar *handler.AvatarHandler
	Health *handler.HealthHandler
	Auth   *handler.AuthHandler

	Authenticator  *security.Authenticator
	AllowedOrigins []string
	Production     bool

	// Registry is where HTTP metrics register; nil uses the default
	// registry.
	Registry *prometheus.Registry
}

// New builds the service router: request IDs, CORS, metrics and panic
// recovery everywhere; signature authentication on the /users subtree;
// health, service info and metrics left open.
func New(deps Deps) http.Handler {
	r := chi.NewRouter()

	var reg prometheus.Registerer = prometheus.DefaultRegisterer
	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	if deps.Registry != nil {
		reg = deps.Registry
		gatherer = deps.Registry
	}
	metrics := middleware.NewMetrics(reg)

	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(deps.AllowedOrigins))
	r.Use(metrics.Handler)
	r.Use(middleware.Recover(deps.Production))

	r.Get("/", deps.Health.Info)
	r.Get("/health", deps.Health.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	if deps.Auth != nil && !deps.Production {
		r.Get("/auth/signature", deps.Auth.Signature)
	}

	r.Route("/users", func(r chi.Router) {
		r.Use(middleware.Auth(deps.Authenticator))

		r.Post("/", deps.Users.Create)
		r.Get("/", deps.Users.List)
		r.Post("/query", deps.Users.Query)
		r.Get("/search", deps.Users.SearchByName)
		r.Get("/stats/overview", deps.Users.Stats)
		r.Get("/email/{email}", deps.Users.GetByEmail)
		r.Get("/discord/{userID}/{guildID}", deps.Users.GetByDiscordID)
		r.Get("/tags/{tag}", deps.Users.GetByTag)

		r.Get("/avatar/cache/stats", deps.Avatar.CacheStats)
		r.Delete("/avatar/cache", deps.Avatar.ClearCache)

		r.Get("/{id}", deps.Users.GetByID)
		r.Put("/{id}", deps.Users.Update)
		r.Delete("/{id}", deps.Users.Delete)
		r.Post("/{id}/tags/{tag}", deps.Users.AddTag)
		r.Delete("/{id}/tags/{tag}", deps.Users.RemoveTag)
		r.Post("/{id}/activate", deps.Users.Activate)
		r.Post("/{id}/deactivate", deps.Users.Deactivate)
		r.Post("/{id}/login", deps.Users.RecordLogin)
		r.Get("/{id}/avatar", deps.Avatar.Get)
		r.Delete("/{id}/avatar/cache", deps.Avatar.InvalidateCache)
	})

	return r
}
