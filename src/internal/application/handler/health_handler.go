package handler

import (
	"net/http"
	"time"

	"github.com/hackit-taiwan/database-service/src/internal/version"
)

// HealthHandler serves the unauthenticated health and service-info
// endpoints.
type HealthHandler struct {
	environment string
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(environment string) *HealthHandler {
	return &HealthHandler{environment: environment}
}

// Health handles GET /health.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, "Service is healthy", map[string]interface{}{
		"status":    "healthy",
		"service":   "database-service",
		"version":   version.GetShortVersion(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Info handles GET /, describing the service.
func (h *HealthHandler) Info(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, "HackIt Database Service", map[string]interface{}{
		"service":     "database-service",
		"version":     version.GetShortVersion(),
		"environment": h.environment,
		"docs":        "/users routes require request signing",
	})
}
