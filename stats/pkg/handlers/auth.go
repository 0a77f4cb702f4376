package handlers

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/Stellar-Pool/stellar-pool-service/stats/pkg/metrics"
)

// PasswordAuth requires the ?password= query parameter to match password.
// An empty password disables the check.
func PasswordAuth(log *slog.Logger, password string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if password == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			if !q.Has("password") {
				metrics.AuthFailuresTotal.WithLabelValues("missing").Inc()
				writeProblem(log, w, http.StatusUnauthorized, MessagePasswordRequired)
				return
			}
			if subtle.ConstantTimeCompare([]byte(q.Get("password")), []byte(password)) != 1 {
				metrics.AuthFailuresTotal.WithLabelValues("mismatch").Inc()
				log.Warn(MessageAuthFailed, "path", r.URL.Path, "remote", clientIP(r))
				writeProblem(log, w, http.StatusUnauthorized, MessageAuthFailed)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
