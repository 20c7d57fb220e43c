package server

import (
	"net/http"
	"strings"
)

// authenticator gates the administrative endpoints behind a bearer token
// allowlist. With no tokens configured, admin routes are disabled outright
// rather than left open.
type authenticator struct {
	tokens map[string]struct{}
}

func newAuthenticator(tokens []string) *authenticator {
	set := make(map[string]struct{})
	for _, token := range tokens {
		trimmed := strings.TrimSpace(token)
		if trimmed == "" {
			continue
		}
		set[trimmed] = struct{}{}
	}
	return &authenticator{tokens: set}
}

func (a *authenticator) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(a.tokens) == 0 {
			writeError(w, http.StatusForbidden, "admin_disabled", "no admin tokens configured")
			return
		}
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized", "bearer token required")
			return
		}
		if _, ok := a.tokens[strings.TrimSpace(token)]; !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized", "unknown token")
			return
		}
		next.ServeHTTP(w, r)
	})
}
