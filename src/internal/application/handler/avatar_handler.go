package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hackit-taiwan/database-service/src/internal/domain/service"
	"github.com/hackit-taiwan/database-service/src/internal/infrastructure/logger"
)

// AvatarHandler serves avatar bytes with conditional-request support and
// exposes the cache administration endpoints.
type AvatarHandler struct {
	cache *service.AvatarCache

	etagEnabled         bool
	lastModifiedEnabled bool
}

// AvatarHandlerConfig toggles the validator headers on avatar responses.
type AvatarHandlerConfig struct {
	ETagEnabled         bool
	LastModifiedEnabled bool
}

// NewAvatarHandler creates an avatar handler over the given cache.
func NewAvatarHandler(cache *service.AvatarCache, cfg AvatarHandlerConfig) *AvatarHandler {
	return &AvatarHandler{
		cache:               cache,
		etagEnabled:         cfg.ETagEnabled,
		lastModifiedEnabled: cfg.LastModifiedEnabled,
	}
}

// Get handles GET /users/{id}/avatar.
func (h *AvatarHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	avatar, err := h.cache.Get(r.Context(), id,
		r.Header.Get("If-None-Match"), r.Header.Get("If-Modified-Since"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAvatarTooLarge):
			respondError(w, http.StatusRequestEntityTooLarge, "Avatar file size exceeds limit")
		case errors.Is(err, service.ErrAvatarUndecodable):
			respondError(w, http.StatusUnprocessableEntity, "Invalid avatar data")
		default:
			logger.WithField("user", id).Errorf("Failed to resolve avatar: %v", err)
			respondError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}
	if avatar == nil {
		respondError(w, http.StatusNotFound, "Avatar not found")
		return
	}

	h.setValidators(w, avatar)
	if avatar.NotModified {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", avatar.ContentType)
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(avatar.Data)))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	if h.cache.Enabled() {
		w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d, immutable", int(h.cache.TTL().Seconds())))
	}
	if _, err := w.Write(avatar.Data); err != nil {
		logger.WithField("user", id).Warnf("Failed to write avatar body: %v", err)
	}
}

// setValidators emits ETag and Last-Modified per configuration. Both 200
// and 304 responses carry them so clients can refresh their validators.
func (h *AvatarHandler) setValidators(w http.ResponseWriter, avatar *service.Avatar) {
	if h.etagEnabled && avatar.ETag != "" {
		w.Header().Set("ETag", `"`+avatar.ETag+`"`)
	}
	if h.lastModifiedEnabled && !avatar.LastModified.IsZero() {
		w.Header().Set("Last-Modified", avatar.LastModified.UTC().Format(http.TimeFormat))
	}
}

// CacheStats handles GET /users/avatar/cache/stats.
func (h *AvatarHandler) CacheStats(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, "Cache statistics", h.cache.Stats())
}

// InvalidateCache handles DELETE /users/{id}/avatar/cache.
func (h *AvatarHandler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.cache.Invalidate(id)
	logger.WithField("user", id).Info("Invalidated avatar cache entry")
	respond(w, http.StatusOK, "Cache entry invalidated", nil)
}

// ClearCache handles DELETE /users/avatar/cache.
func (h *AvatarHandler) ClearCache(w http.ResponseWriter, r *http.Request) {
	h.cache.Clear()
	respond(w, http.StatusOK, "Cache cleared", nil)
}
