package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

// authExempt lists paths reachable without credentials: the health probe
// and the websocket feed, since browsers cannot set headers on a ws dial.
var authExempt = map[string]struct{}{
	"/health":    {},
	"/ws/events": {},
}

// APIKey requires a Bearer token on every API route. An empty configured
// key disables the check, which is how local runs operate.
func APIKey(key string, next http.Handler) http.Handler {
	key = strings.TrimSpace(key)
	if key == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := authExempt[r.URL.Path]; ok {
			next.ServeHTTP(w, r)
			return
		}
		if r.Method == "OPTIONS" {
			next.ServeHTTP(w, r)
			return
		}
		header := strings.TrimSpace(r.Header.Get("Authorization"))
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(strings.TrimSpace(token)), []byte(key)) != 1 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid or missing API key"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
