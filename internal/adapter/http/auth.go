package http

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
)

// BasicAuth returns a middleware that protects routes with HTTP basic
// authentication against the given username/password map. An empty map
// disables authentication entirely.
func BasicAuth(credentials map[string]string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if len(credentials) == 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			if !ok || !checkCredentials(credentials, user, pass) {
				w.Header().Set("WWW-Authenticate", `Basic realm="testbench"`)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// checkCredentials compares hashes so the comparison takes constant time
// regardless of how much of the password matches.
func checkCredentials(credentials map[string]string, user, pass string) bool {
	want, ok := credentials[user]
	if !ok {
		// Burn the same work as a real comparison.
		subtle.ConstantTimeCompare(hash(pass), hash(pass))
		return false
	}

	return subtle.ConstantTimeCompare(hash(pass), hash(want)) == 1
}

func hash(s string) []byte {
	sum := sha256.Sum256([]byte(s))
	return sum[:]
}
