// Package middleware provides the HTTP middleware used by the agent:
// shared-secret authentication and request IDs.
package middleware

import (
	"encoding/json"
	"net/http"
)

// AgentKeyHeader carries the shared-secret API key on protected routes.
const AgentKeyHeader = "X-Agent-Key"

// KeyVerifier checks a presented API key. Implemented by the config layer,
// which holds the bcrypt hash of the issued key.
type KeyVerifier interface {
	VerifyAPIKey(key string) bool
}

// AgentKeyAuth returns middleware enforcing the X-Agent-Key header. Missing
// or invalid keys yield a 401 JSON body; the request never reaches the query
// engine.
func AgentKeyAuth(verifier KeyVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(AgentKeyHeader)
			if key == "" {
				unauthorized(w, "Missing API key. Provide X-Agent-Key header.")
				return
			}
			if !verifier.VerifyAPIKey(key) {
				unauthorized(w, "Invalid API key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"code":    http.StatusUnauthorized,
		"message": message,
	})
}
