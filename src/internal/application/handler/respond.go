// Package handler provides the HTTP handlers of the database service.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/hackit-taiwan/database-service/src/internal/infrastructure/logger"
)

// response is the JSON envelope every endpoint answers with.
type response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func respond(w http.ResponseWriter, status int, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response{Success: true, Message: message, Data: data}); err != nil {
		logger.Errorf("Failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response{Success: false, Message: message}); err != nil {
		logger.Errorf("Failed to encode error response: %v", err)
	}
}
