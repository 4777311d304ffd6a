package server

import (
	"crypto/subtle"
	"net/http"
)

// AdminAuthMiddleware guards operator routes with the static admin password,
// supplied via the X-Admin-Password header. An empty configured password
// disables the admin surface entirely rather than leaving it open.
func AdminAuthMiddleware(password string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if password == "" {
				http.Error(w, "admin surface disabled", http.StatusServiceUnavailable)
				return
			}

			got := r.Header.Get("X-Admin-Password")
			if subtle.ConstantTimeCompare([]byte(got), []byte(password)) != 1 {
				http.Error(w, "invalid admin password", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
