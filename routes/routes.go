package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/upb/jwt-auth-gateway/app"
	"github.com/upb/jwt-auth-gateway/middleware"
	"github.com/upb/jwt-auth-gateway/utils"
)

// SetupRoutes configures all application routes and middleware.
//
// Every request passes Authenticate and then EnforcePolicy before reaching a
// handler, including requests for unknown paths.
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(deps.Metrics.Instrument)
	r.Use(chimw.Recoverer)
	if timeout := deps.Config.Server.RequestTimeout; timeout > 0 {
		r.Use(chimw.Timeout(timeout))
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Config.Server.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID", "WWW-Authenticate", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Authentication, then route policy
	r.Use(deps.AuthMiddleware.Authenticate)
	r.Use(deps.PolicyMiddleware.EnforcePolicy)

	r.Get("/healthz", deps.HealthHandler.HandleHealth)
	r.Get("/readyz", deps.HealthHandler.HandleReadiness)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/login", deps.AuthHandler.HandleLogin)
		r.Post("/register", deps.AuthHandler.HandleRegister)
		r.Post("/refresh", deps.AuthHandler.HandleRefresh)

		r.Get("/greet", deps.UserHandler.HandleGreet)
		r.Get("/me", deps.UserHandler.HandleMe)
		r.Get("/users", deps.UserHandler.HandleListUsers)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteNotFound(w, "endpoint not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteMethodNotAllowed(w)
	})

	return r
}
