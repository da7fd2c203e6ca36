package handler

import (
	"net/http"

	"github.com/hackit-taiwan/database-service/src/internal/infrastructure/security"
)

// AuthHandler serves the development-only signature helper. It is never
// mounted in production.
type AuthHandler struct {
	secret string
}

// NewAuthHandler creates an auth helper handler signing with the given
// secret.
func NewAuthHandler(secret string) *AuthHandler {
	return &AuthHandler{secret: secret}
}

// Signature handles GET /auth/signature?method=&path=, returning freshly
// minted auth headers for manual testing.
func (h *AuthHandler) Signature(w http.ResponseWriter, r *http.Request) {
	method := r.URL.Query().Get("method")
	path := r.URL.Query().Get("path")
	if method == "" || path == "" {
		respondError(w, http.StatusBadRequest, "Query parameters 'method' and 'path' are required")
		return
	}

	respond(w, http.StatusOK, "Signature generated", security.AuthHeaders(h.secret, method, path))
}
