package middleware

import (
	"net/http"

	"github.com/google/uuid"
)

// RequestIDHeader is the header carrying the per-request identifier.
const RequestIDHeader = "X-Request-ID"

// RequestID assigns every request a UUID, honoring an ID supplied by the
// caller, and echoes it back in the response. Downstream handlers read
// it via RequestIDFromContext for log correlation.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)

		ctx := r.Context()
		ctx = contextWithRequestID(ctx, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
