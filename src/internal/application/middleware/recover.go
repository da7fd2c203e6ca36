package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/sirupsen/logrus"

	"github.com/hackit-taiwan/database-service/src/internal/infrastructure/logger"
)

// Recover converts handler panics into 500 responses. Outside production
// the response carries the panic value to ease debugging; in production
// clients get a generic message and the detail stays in the logs.
func Recover(production bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				logger.WithFields(logrus.Fields{
					"method":     r.Method,
					"path":       r.URL.Path,
					"request_id": RequestIDFromContext(r.Context()),
					"panic":      fmt.Sprintf("%v", rec),
				}).Errorf("Panic while serving request\n%s", debug.Stack())

				message := "Internal server error"
				if !production {
					message = fmt.Sprintf("Internal server error: %v", rec)
				}
				writeError(w, http.StatusInternalServerError, message)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
