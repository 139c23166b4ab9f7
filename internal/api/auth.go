package api

import (
	"context"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/logware/soar/internal/models"
)

// Context keys for authentication.
type contextKey string

const (
	// actorContextKey is the context key for the authenticated actor.
	actorContextKey contextKey = "actor"
	// keyNameContextKey is the context key for the matched API key name.
	keyNameContextKey contextKey = "apiKeyName"
)

// Credential is one accepted API key: a bcrypt hash of the raw key and
// the actor identity it authenticates as.
type Credential struct {
	Name  string
	Hash  string
	Actor models.Actor
}

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	// Enabled determines if authentication is required.
	Enabled bool
	// Credentials are the accepted API keys.
	Credentials []Credential
}

// NewAuthMiddleware creates an authentication middleware. Requests
// presenting a key that matches one of the configured bcrypt hashes
// proceed with that credential's actor in the context; everything else
// is rejected.
func NewAuthMiddleware(config AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !config.Enabled {
				next.ServeHTTP(w, r)
				return
			}

			apiKey := extractAPIKey(r)
			if apiKey == "" {
				writeAuthError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "API key required")
				return
			}

			cred, ok := matchCredential(config.Credentials, apiKey)
			if !ok {
				writeAuthError(w, http.StatusForbidden, ErrCodeForbidden, "invalid API key")
				return
			}

			ctx := r.Context()
			ctx = context.WithValue(ctx, actorContextKey, cred.Actor)
			ctx = context.WithValue(ctx, keyNameContextKey, cred.Name)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// matchCredential finds the credential whose bcrypt hash matches the
// presented key. Credential lists are small, so a linear scan is fine.
func matchCredential(creds []Credential, apiKey string) (Credential, bool) {
	for _, cred := range creds {
		if bcrypt.CompareHashAndPassword([]byte(cred.Hash), []byte(apiKey)) == nil {
			return cred, true
		}
	}
	return Credential{}, false
}

// extractAPIKey extracts the API key from the request.
// Supports: X-API-Key header, Authorization: Bearer token, Authorization: ApiKey token
func extractAPIKey(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}

	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}

	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	if strings.HasPrefix(auth, "ApiKey ") {
		return strings.TrimPrefix(auth, "ApiKey ")
	}

	return ""
}

// GetActorFromContext retrieves the authenticated actor from the request
// context. Returns a zero actor when authentication is disabled, which
// displays as "anonymous".
func GetActorFromContext(ctx context.Context) models.Actor {
	if a, ok := ctx.Value(actorContextKey).(models.Actor); ok {
		return a
	}
	return models.Actor{}
}

// GetKeyNameFromContext retrieves the matched API key name, if any.
func GetKeyNameFromContext(ctx context.Context) string {
	if n, ok := ctx.Value(keyNameContextKey).(string); ok {
		return n
	}
	return ""
}

func writeAuthError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"success":false,"error":{"code":"` + code + `","message":"` + message + `"}}`))
}
