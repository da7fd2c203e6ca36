package middleware

import (
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/hackit-taiwan/database-service/src/internal/infrastructure/logger"
	"github.com/hackit-taiwan/database-service/src/internal/infrastructure/security"
)

// RemainingHeader reports the caller's remaining rate-limit quota on
// authenticated responses.
const RemainingHeader = "X-Remaining-Requests"

// Auth enforces request-signature authentication and per-client rate
// limiting via the given authenticator. Rate-limited callers get a 429
// in every environment; other rejections map to 401 in production and
// are only logged outside it, so a misconfigured local caller can still
// exercise the API.
func Auth(auth *security.Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientID := security.ClientIP(r)
			result := auth.Verify(r.Context(), security.Request{
				Method:          r.Method,
				Path:            r.URL.Path,
				TimestampHeader: r.Header.Get(security.TimestampHeader),
				SignatureHeader: r.Header.Get(security.SignatureHeader),
				Host:            r.Host,
				ClientID:        clientID,
			})
			if !result.OK {
				if result.Reason == security.ReasonRateLimited {
					w.Header().Set(RemainingHeader, strconv.Itoa(result.Remaining))
					w.Header().Set("Retry-After", "60")
					writeError(w, http.StatusTooManyRequests, string(result.Reason))
					return
				}
				if auth.Production() {
					writeError(w, http.StatusUnauthorized, string(result.Reason))
					return
				}
				logger.WithFields(logrus.Fields{
					"client": clientID,
					"path":   r.URL.Path,
					"reason": string(result.Reason),
				}).Warn("Authentication failed, allowing in development mode")
			}

			w.Header().Set(RemainingHeader, strconv.Itoa(auth.Remaining(r.Context(), clientID)))
			next.ServeHTTP(w, r)
		})
	}
}
