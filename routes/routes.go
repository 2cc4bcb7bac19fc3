package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/upb/leads-guard/app"
	"github.com/upb/leads-guard/handlers"
	"github.com/upb/leads-guard/internal/policy"
)

var defaultOrigins = []string{"http://localhost:3000"}

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	origins := defaultOrigins
	if deps.Config != nil && len(deps.Config.Server.AllowedOrigins) > 0 {
		origins = deps.Config.Server.AllowedOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	health := handlers.NewHealthHandler(healthDB(deps), auditHealth(deps), deps.Logger)
	r.Get("/healthz", health.HandleHealth)
	r.Get("/readyz", health.HandleReadiness)

	if deps.Config != nil && deps.Config.Observability.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	accessHandler := handlers.NewAccessHandler(deps.Access, deps.Logger)
	auditHandler := handlers.NewAuditHandler(deps.AuditRecords, deps.Logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(deps.AuthMiddleware.RequireAuth)
		r.Use(deps.AuthMiddleware.ResolveIdentity)

		r.Post("/query", accessHandler.HandleQuery)

		r.Route("/leads", func(r chi.Router) {
			r.Get("/mine", accessHandler.HandleMyLeads)
			r.With(deps.AuthMiddleware.RequireRole(policy.RoleManager, policy.RoleAdmin)).
				Get("/team", accessHandler.HandleTeamLeads)
		})

		r.Get("/schema/{table}", accessHandler.HandleTableSchema)
		r.Get("/schema/{table}/samples", accessHandler.HandleColumnSamples)

		// Audit logs (require admin role)
		r.Route("/audit", func(r chi.Router) {
			r.Use(deps.AuthMiddleware.RequireRole(policy.RoleAdmin))
			r.Get("/logs", auditHandler.HandleList)
			r.Get("/logs/{id}", auditHandler.HandleGet)
		})
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"endpoint not found"}`))
	})

	return r
}

// healthDB and auditHealth keep a missing component a nil interface so
// readiness reports it as not initialized.
func healthDB(deps *app.Dependencies) handlers.HealthChecker {
	if deps.DB == nil {
		return nil
	}
	return deps.DB
}

func auditHealth(deps *app.Dependencies) handlers.AuditHealth {
	if deps.AuditService == nil {
		return nil
	}
	return deps.AuditService
}
