package server

import (
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// APIKeyAuth guards the admin API with a single shared key, presented as
// "Authorization: Bearer <key>" or "X-Api-Key: <key>". Only its bcrypt hash is
// configured.
type APIKeyAuth struct {
	Hash string
}

func apiKeyFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if scheme, tok, ok := strings.Cut(h, " "); ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(tok)
		}
	}
	return strings.TrimSpace(r.Header.Get("X-Api-Key"))
}

func (a APIKeyAuth) verify(key string) bool {
	if key == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(a.Hash), []byte(key)) == nil
}

// require rejects requests without a valid key. With no hash configured
// every request passes.
func (a APIKeyAuth) require(next http.Handler) http.Handler {
	if a.Hash == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.verify(apiKeyFromRequest(r)) {
			w.Header().Set("WWW-Authenticate", `Bearer realm="admin"`)
			writeErrorCode(w, http.StatusUnauthorized, "unauthorized", "missing or invalid API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}
