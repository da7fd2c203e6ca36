// Package middleware provides the HTTP middleware chain of the database
// service: request identification, CORS, request signing enforcement,
// rate limiting, metrics collection and panic recovery.
package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hackit-taiwan/database-service/src/internal/infrastructure/logger"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// RequestIDFromContext returns the request ID assigned by RequestID, or
// an empty string when none was set.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func contextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// writeError emits the service's JSON error envelope. It mirrors the
// shape handlers use so clients see a single format regardless of which
// layer rejected the request.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"message": message,
	}); err != nil {
		logger.Errorf("Failed to encode error response: %v", err)
	}
}
