package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/logware/soar/internal/models"
	"github.com/logware/soar/internal/storage"
	"github.com/logware/soar/pkg/clock"
)

const testAPIKey = "soar_test_key_1234"

func authRouter(t *testing.T) http.Handler {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testAPIKey), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("generating hash: %v", err)
	}

	h := NewHandler(storage.NewMemoryStore(), zerolog.Nop(), HandlerOptions{})
	return NewRouterWithConfig(h, zerolog.Nop(), RouterConfig{
		AuthConfig: AuthConfig{
			Enabled: true,
			Credentials: []Credential{
				{
					Name:  "analyst-key",
					Hash:  string(hash),
					Actor: models.Actor{ID: "analyst-1", Name: "Dana"},
				},
			},
		},
	})
}

func TestAuthMiddleware(t *testing.T) {
	router := authRouter(t)

	tests := []struct {
		name       string
		setHeader  func(r *http.Request)
		wantStatus int
	}{
		{
			name:       "missing key",
			setHeader:  func(r *http.Request) {},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "wrong key",
			setHeader: func(r *http.Request) {
				r.Header.Set("X-API-Key", "not-the-key")
			},
			wantStatus: http.StatusForbidden,
		},
		{
			name: "valid X-API-Key",
			setHeader: func(r *http.Request) {
				r.Header.Set("X-API-Key", testAPIKey)
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "valid bearer token",
			setHeader: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+testAPIKey)
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "valid ApiKey scheme",
			setHeader: func(r *http.Request) {
				r.Header.Set("Authorization", "ApiKey "+testAPIKey)
			},
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/executions", nil)
			tt.setHeader(req)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body: %s)", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestAuthHealthUnprotected(t *testing.T) {
	router := authRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("health status = %d, want 200 without credentials", w.Code)
	}
}

func TestAuthActorAnnotatesAbort(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte(testAPIKey), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("generating hash: %v", err)
	}

	store := storage.NewMemoryStore()
	h := NewHandler(store, zerolog.Nop(), HandlerOptions{Clock: clock.NewMock(testNow)})
	router := NewRouterWithConfig(h, zerolog.Nop(), RouterConfig{
		AuthConfig: AuthConfig{
			Enabled: true,
			Credentials: []Credential{
				{Name: "analyst-key", Hash: string(hash), Actor: models.Actor{ID: "analyst-1", Name: "Dana"}},
			},
		},
	})

	rec := runningRecord("exec-1", testNow)
	if err := store.CreateExecution(rec); err != nil {
		t.Fatalf("seeding store: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/executions/exec-1/abort", nil)
	req.Header.Set("X-API-Key", testAPIKey)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	stored, err := store.GetExecution("exec-1")
	if err != nil {
		t.Fatalf("GetExecution() = %v", err)
	}
	if stored.AbortRequestedBy != "Dana" {
		t.Errorf("AbortRequestedBy = %q, want the authenticated actor", stored.AbortRequestedBy)
	}
}

func TestGetActorFromContextDefaults(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	actor := GetActorFromContext(req.Context())
	if !actor.IsZero() {
		t.Errorf("actor = %+v, want zero", actor)
	}
	if actor.Display() != "anonymous" {
		t.Errorf("Display() = %q, want anonymous", actor.Display())
	}
}
