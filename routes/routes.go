package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/leasegate/leasegate/app"
	"github.com/leasegate/leasegate/handlers"
	"github.com/leasegate/leasegate/middleware"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
		ExposedHeaders:   []string{"Link", "X-Request-ID", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check endpoints
	r.Get("/healthz", handlers.HealthCheck(deps))
	r.Get("/readyz", handlers.ReadinessCheck(deps))

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", handlers.GovernorStatus(deps))
		r.Get("/status/interventions", handlers.SafetyInterventions(deps))
		r.Get("/metrics", handlers.Metrics(deps))
		r.Get("/reports/daily", handlers.DailyReport(deps))
		r.Get("/receipts/verify", handlers.VerifyReceipt(deps))

		r.Route("/leases", func(r chi.Router) {
			r.Post("/acquire", handlers.AcquireLease(deps))
			r.Post("/release", handlers.ReleaseLease(deps))
		})

		r.Route("/approvals", func(r chi.Router) {
			r.Post("/request", handlers.RequestApproval(deps))
			r.Post("/grant", handlers.GrantApproval(deps))
			r.Post("/deny", handlers.DenyApproval(deps))
			r.Post("/review", handlers.ReviewApproval(deps))
			r.Get("/pending", handlers.ListPendingApprovals(deps))
		})

		r.Route("/tools", func(r chi.Router) {
			r.Get("/", handlers.ListTools(deps))
			r.Post("/", handlers.RegisterTool(deps))
			r.Post("/sublease", handlers.RequestToolSubLease(deps))
			r.Post("/execute", handlers.ExecuteToolCall(deps))
		})

		r.Route("/policy", func(r chi.Router) {
			r.Post("/stage", handlers.StagePolicyBundle(deps))
			r.Post("/activate", handlers.ActivatePolicy(deps))
		})
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"not_found","message":"The requested resource was not found"}`))
	})

	return r
}
