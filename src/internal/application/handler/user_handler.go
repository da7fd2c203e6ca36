package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/hackit-taiwan/database-service/src/internal/domain/entity"
	"github.com/hackit-taiwan/database-service/src/internal/infrastructure/logger"
	"github.com/hackit-taiwan/database-service/src/internal/infrastructure/store"
)

// UserHandler serves the user CRUD, query, tagging and analytics
// endpoints.
type UserHandler struct {
	users store.UserStore
}

// NewUserHandler creates a user handler over the given store.
func NewUserHandler(users store.UserStore) *UserHandler {
	return &UserHandler{users: users}
}

// Create handles POST /users/.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var user entity.User
	if err := json.NewDecoder(r.Body).Decode(&user); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if user.UserID == 0 || user.GuildID == 0 || user.RealName == "" || user.Email == "" {
		respondError(w, http.StatusBadRequest, "user_id, guild_id, real_name and email are required")
		return
	}

	created, err := h.users.Create(r.Context(), &user)
	if errors.Is(err, store.ErrDuplicate) {
		respondError(w, http.StatusConflict, "User already exists")
		return
	}
	if err != nil {
		h.storeError(w, r, "create user", err)
		return
	}

	logger.WithFields(logrus.Fields{
		"id":       created.ID.Hex(),
		"user_id":  created.UserID,
		"guild_id": created.GuildID,
	}).Info("Created user")
	respond(w, http.StatusCreated, "User created successfully", created)
}

// GetByID handles GET /users/{id}.
func (h *UserHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.GetByID(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		h.storeError(w, r, "get user", err)
		return
	}
	respond(w, http.StatusOK, "User found", user)
}

// GetByEmail handles GET /users/email/{email}.
func (h *UserHandler) GetByEmail(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.GetByEmail(r.Context(), chi.URLParam(r, "email"))
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		h.storeError(w, r, "get user by email", err)
		return
	}
	respond(w, http.StatusOK, "User found", user)
}

// GetByDiscordID handles GET /users/discord/{userID}/{guildID}.
func (h *UserHandler) GetByDiscordID(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}
	guildID, err := strconv.ParseInt(chi.URLParam(r, "guildID"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid guild ID")
		return
	}

	user, err := h.users.GetByDiscordID(r.Context(), userID, guildID)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		h.storeError(w, r, "get user by discord id", err)
		return
	}
	respond(w, http.StatusOK, "User found", user)
}

// Update handles PUT /users/{id}.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	var upd entity.UserUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if upd.IsEmpty() {
		respondError(w, http.StatusBadRequest, "No fields to update")
		return
	}

	user, err := h.users.Update(r.Context(), chi.URLParam(r, "id"), &upd)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		h.storeError(w, r, "update user", err)
		return
	}
	respond(w, http.StatusOK, "User updated successfully", user)
}

// Delete handles DELETE /users/{id}.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := h.users.Delete(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		h.storeError(w, r, "delete user", err)
		return
	}
	logger.WithField("id", id).Info("Deleted user")
	respond(w, http.StatusOK, "User deleted successfully", nil)
}

// Query handles POST /users/query.
func (h *UserHandler) Query(w http.ResponseWriter, r *http.Request) {
	var q entity.UserQuery
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	q.Normalize()

	users, err := h.users.Query(r.Context(), q)
	if err != nil {
		h.storeError(w, r, "query users", err)
		return
	}
	respond(w, http.StatusOK, "Query executed", map[string]interface{}{
		"users": users,
		"count": len(users),
	})
}

// List handles GET /users/ with limit/offset pagination.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	q := entity.UserQuery{}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		q.Limit = n
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "Invalid offset")
			return
		}
		q.Offset = n
	}
	q.Normalize()

	users, err := h.users.Query(r.Context(), q)
	if err != nil {
		h.storeError(w, r, "list users", err)
		return
	}
	total, err := h.users.Count(r.Context())
	if err != nil {
		h.storeError(w, r, "count users", err)
		return
	}
	respond(w, http.StatusOK, "Users listed", map[string]interface{}{
		"users":  users,
		"count":  len(users),
		"total":  total,
		"limit":  q.Limit,
		"offset": q.Offset,
	})
}

// AddTag handles POST /users/{id}/tags/{tag}.
func (h *UserHandler) AddTag(w http.ResponseWriter, r *http.Request) {
	id, tag := chi.URLParam(r, "id"), chi.URLParam(r, "tag")
	err := h.users.AddTag(r.Context(), id, tag)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		h.storeError(w, r, "add tag", err)
		return
	}
	respond(w, http.StatusOK, "Tag added", nil)
}

// RemoveTag handles DELETE /users/{id}/tags/{tag}.
func (h *UserHandler) RemoveTag(w http.ResponseWriter, r *http.Request) {
	id, tag := chi.URLParam(r, "id"), chi.URLParam(r, "tag")
	err := h.users.RemoveTag(r.Context(), id, tag)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		h.storeError(w, r, "remove tag", err)
		return
	}
	respond(w, http.StatusOK, "Tag removed", nil)
}

// GetByTag handles GET /users/tags/{tag}.
func (h *UserHandler) GetByTag(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.GetByTag(r.Context(), chi.URLParam(r, "tag"))
	if err != nil {
		h.storeError(w, r, "get users by tag", err)
		return
	}
	respond(w, http.StatusOK, "Users found", map[string]interface{}{
		"users": users,
		"count": len(users),
	})
}

// SearchByName handles GET /users/search?name=.
func (h *UserHandler) SearchByName(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		respondError(w, http.StatusBadRequest, "Query parameter 'name' is required")
		return
	}

	users, err := h.users.SearchByName(r.Context(), name)
	if err != nil {
		h.storeError(w, r, "search users", err)
		return
	}
	respond(w, http.StatusOK, "Search executed", map[string]interface{}{
		"users": users,
		"count": len(users),
	})
}

// Activate handles POST /users/{id}/activate.
func (h *UserHandler) Activate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true, "User activated")
}

// Deactivate handles POST /users/{id}/deactivate.
func (h *UserHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false, "User deactivated")
}

func (h *UserHandler) setActive(w http.ResponseWriter, r *http.Request, active bool, message string) {
	err := h.users.SetActive(r.Context(), chi.URLParam(r, "id"), active)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		h.storeError(w, r, "set active state", err)
		return
	}
	respond(w, http.StatusOK, message, nil)
}

// RecordLogin handles POST /users/{id}/login.
func (h *UserHandler) RecordLogin(w http.ResponseWriter, r *http.Request) {
	err := h.users.RecordLogin(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		h.storeError(w, r, "record login", err)
		return
	}
	respond(w, http.StatusOK, "Login recorded", nil)
}

// Stats handles GET /users/stats/overview.
func (h *UserHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.users.Stats(r.Context())
	if err != nil {
		h.storeError(w, r, "compute stats", err)
		return
	}
	respond(w, http.StatusOK, "Statistics computed", stats)
}

func (h *UserHandler) storeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	logger.WithFields(logrus.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
	}).Errorf("Failed to %s: %v", op, err)
	respondError(w, http.StatusInternalServerError, "Internal server error")
}
