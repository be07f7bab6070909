package middleware

import (
	"net/http"
	"strings"

	"imenu-order-services/internal/auth"
)

// CronAuth guards the scheduled-job endpoints with a static bearer secret.
func CronAuth(cronSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			secret := strings.TrimSpace(cronSecret)
			if secret == "" {
				writeAuthError(w, http.StatusForbidden, "Cron access is disabled")
				return
			}

			token := strings.TrimSpace(auth.ParseBearerToken(r.Header.Get("Authorization")))
			if token == "" || token != secret {
				writeAuthError(w, http.StatusUnauthorized, "Invalid cron token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
