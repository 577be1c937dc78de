// Package guard enforces the embedding and cross-origin submission policy
// at the HTTP boundary.
package guard

import (
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// FrameAncestors returns middleware that declares which origins may embed
// the rendered pages. The allow-list is the union across all tenants; the
// legacy X-Frame-Options header is never emitted so the CSP directive is
// the single source of truth.
func FrameAncestors(origins []string) func(http.Handler) http.Handler {
	policy := fmt.Sprintf("frame-ancestors %s;", strings.Join(origins, " "))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Security-Policy", policy)
			next.ServeHTTP(w, r)
		})
	}
}

// CheckOrigin returns middleware that rejects requests whose Origin header
// is present but not on the allow-list. Requests without an Origin, or with
// the literal "null" origin, pass through: iframe POSTs legitimately arrive
// that way.
func CheckOrigin(origins []string, log *zap.Logger) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(origins))
	for _, origin := range origins {
		allowed[origin] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" || origin == "null" {
				next.ServeHTTP(w, r)
				return
			}
			if !allowed[origin] {
				log.Warn("blocked request from origin", zap.String("origin", origin))
				http.Error(w, "Embedding not allowed", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
