// Package api provides the REST API router.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/logware/soar/internal/metrics"
)

// RouterConfig holds configuration for the API router.
type RouterConfig struct {
	// AllowedOrigins is the list of allowed CORS origins. Empty means all origins allowed.
	AllowedOrigins []string
	// AuthConfig holds authentication configuration.
	AuthConfig AuthConfig
	// RateLimiter is the rate limiter instance (optional).
	RateLimiter *RateLimiter
	// AuditConfig holds audit logging configuration (optional).
	AuditConfig AuditConfig
	// Metrics enables the request metrics middleware and the scrape
	// endpoint at MetricsPath (optional).
	Metrics     *metrics.Metrics
	MetricsPath string
}

// NewRouter creates a new API router.
func NewRouter(handler *Handler, logger zerolog.Logger) *chi.Mux {
	return NewRouterWithConfig(handler, logger, RouterConfig{})
}

// NewRouterWithConfig creates a new API router with configuration.
func NewRouterWithConfig(handler *Handler, logger zerolog.Logger, config RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(NewLoggingMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	if config.Metrics != nil {
		r.Use(NewMetricsMiddleware(config.Metrics))
	}

	// Rate limiting (before other middleware for early rejection)
	if config.RateLimiter != nil {
		r.Use(NewRateLimitMiddleware(config.RateLimiter))
	}

	// CORS
	r.Use(NewCORSMiddleware(config.AllowedOrigins))

	// Health check and version (no auth required)
	r.Get("/health", handler.HealthCheck)
	r.Get("/version", handler.Version)

	// Prometheus metrics (no auth required)
	if config.Metrics != nil {
		path := config.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, metrics.Handler())
	}

	// API v1 (auth required for protected routes)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(NewAuthMiddleware(config.AuthConfig))

		// Audit mutating requests once the actor is known
		if config.AuditConfig.Enabled {
			r.Use(NewAuditMiddleware(config.AuditConfig))
		}

		// Executions: pushed by engines, queried by the console
		r.Route("/executions", func(r chi.Router) {
			r.Get("/", handler.ListExecutions)
			r.Post("/", handler.IngestExecution)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", handler.GetExecution)
				r.Put("/", handler.UpdateExecution)
				r.Post("/abort", handler.AbortExecution)
			})
		})

		// Summary over the filtered execution set
		r.Get("/summary", handler.GetSummary)

		// Playbook definitions
		r.Route("/playbooks", func(r chi.Router) {
			r.Get("/", handler.ListPlaybooks)
			r.Post("/", handler.CreatePlaybook)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", handler.GetPlaybook)
				r.Put("/", handler.UpdatePlaybook)
				r.Delete("/", handler.DeletePlaybook)
			})
		})

		// Detection rules
		r.Route("/rules", func(r chi.Router) {
			r.Get("/", handler.ListRules)
			r.Post("/", handler.CreateRule)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", handler.GetRule)
				r.Put("/", handler.UpdateRule)
				r.Delete("/", handler.DeleteRule)
			})
		})

		// Anomalies
		r.Route("/anomalies", func(r chi.Router) {
			r.Get("/", handler.ListAnomalies)
			r.Post("/", handler.CreateAnomaly)
			r.Get("/{id}", handler.GetAnomaly)
		})

		// Recent notices
		r.Get("/notices", handler.ListNotices)
	})

	return r
}

// NewCORSMiddleware creates a CORS middleware with configurable origins.
func NewCORSMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			// If no allowed origins specified, allow all (development mode)
			if len(allowedOrigins) == 0 {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			} else {
				// Check if origin is in allowed list
				for _, allowed := range allowedOrigins {
					if origin == allowed || allowed == "*" {
						w.Header().Set("Access-Control-Allow-Origin", origin)
						break
					}
				}
			}

			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-API-Key, X-Requested-With")
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Max-Age", "86400")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
