package router

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hackit-taiwan/database-service/src/internal/application/handler"
	"github.com/hackit-taiwan/database-service/src/internal/application/middleware"
	"github.com/hackit-taiwan/database-service/src/internal/domain/service"
	"github.com/hackit-taiwan/database-service/src/internal/infrastructure/ratelimit"
	"github.com/hackit-taiwan/database-service/src/internal/infrastructure/security"
	"github.com/hackit-taiwan/database-service/src/internal/infrastructure/store"
)

const testSecret = "router-test-secret"

func newTestRouter(t *testing.T, production bool) http.Handler {
	t.Helper()
	users := store.NewMockUserStore()
	cache := service.NewAvatarCache(users, service.AvatarCacheConfig{Enabled: true, TTL: 300 * time.Second})

	limiter := ratelimit.NewMemoryWindow(ratelimit.DefaultConfig())
	auth := security.NewAuthenticator(security.Config{
		Secret:         testSecret,
		ValidityWindow: 300 * time.Second,
		AllowedHosts:   []string{"localhost", "example.com"},
		Production:     production,
	}, limiter)

	return New(Deps{
		Users:          handler.NewUserHandler(users),
		Avatar:         handler.NewAvatarHandler(cache, handler.AvatarHandlerConfig{ETagEnabled: true, LastModifiedEnabled: true}),
		Health:         handler.NewHealthHandler("test"),
		Auth:           handler.NewAuthHandler(testSecret),
		Authenticator:  auth,
		AllowedOrigins: []string{"https://hackit.tw"},
		Production:     production,
		Registry:       prometheus.NewRegistry(),
	})
}

func TestOpenEndpoints(t *testing.T) {
	router := newTestRouter(t, true)

	for _, target := range []string{"/", "/health", "/metrics"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
		if w.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200 without authentication", target, w.Code)
		}
	}
}

func TestUsersRequireSignature(t *testing.T) {
	router := newTestRouter(t, true)

	r := httptest.NewRequest(http.MethodGet, "/users/stats/overview", nil)
	r.Host = "example.com"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("unsigned request status = %d, want 401", w.Code)
	}

	r = httptest.NewRequest(http.MethodGet, "/users/stats/overview", nil)
	r.Host = "example.com"
	for k, v := range security.AuthHeaders(testSecret, http.MethodGet, "/users/stats/overview") {
		r.Header.Set(k, v)
	}
	w = httptest.NewRecorder()
	router.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("signed request status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if w.Header().Get(middleware.RemainingHeader) == "" {
		t.Errorf("%s header missing on authenticated response", middleware.RemainingHeader)
	}
}

func TestSignatureHelperHiddenInProduction(t *testing.T) {
	production := newTestRouter(t, true)
	w := httptest.NewRecorder()
	production.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/signature?method=GET&path=/users/", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("production /auth/signature status = %d, want 404", w.Code)
	}

	development := newTestRouter(t, false)
	w = httptest.NewRecorder()
	development.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/signature?method=GET&path=/users/", nil))
	if w.Code != http.StatusOK {
		t.Errorf("development /auth/signature status = %d, want 200", w.Code)
	}
}

func TestRequestIDOnEveryResponse(t *testing.T) {
	router := newTestRouter(t, false)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Header().Get(middleware.RequestIDHeader) == "" {
		t.Errorf("%s header missing", middleware.RequestIDHeader)
	}
}

func TestCORSOnRouter(t *testing.T) {
	router := newTestRouter(t, false)

	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.Header.Set("Origin", "https://hackit.tw")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://hackit.tw" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}
