package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// AuditConfig holds audit logging configuration.
type AuditConfig struct {
	// Enabled determines if audit logging is active.
	Enabled bool
	// Logger receives the audit entries.
	Logger zerolog.Logger
}

// NewAuditMiddleware creates middleware that logs every mutating API
// request with the acting identity. Reads are not audited.
func NewAuditMiddleware(config AuditConfig) func(http.Handler) http.Handler {
	auditLog := config.Logger.With().Str("component", "audit").Logger()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !config.Enabled || r.Method == http.MethodGet || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			actor := GetActorFromContext(r.Context())
			auditLog.Info().
				Str("action", mapMethodToAction(r.Method)).
				Str("actor", actor.Display()).
				Str("api_key", GetKeyNameFromContext(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("remote_addr", getClientIP(r)).
				Int("status", ww.Status()).
				Bool("success", ww.Status() < 400).
				Dur("duration", time.Since(start)).
				Msg("Audit")
		})
	}
}

// mapMethodToAction maps HTTP methods to audit action names.
func mapMethodToAction(method string) string {
	switch method {
	case http.MethodPost:
		return "api_create"
	case http.MethodPut, http.MethodPatch:
		return "api_update"
	case http.MethodDelete:
		return "api_delete"
	default:
		return "api_request"
	}
}

// getClientIP extracts the client IP address.
func getClientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}
