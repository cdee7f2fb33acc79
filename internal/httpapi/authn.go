package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"foodtrace.org/internal/auth"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

var publicPaths = []string{
	"/v1/auth/token",
	"/metrics",
	"/healthz",
	"/readyz",
	"/openapi.yaml",
	"/v1/info",
	"/v1/stream",
	"/",
}

func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		if isPublicRequest(r) {
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get(authHeader)
		// First registration bootstraps the admin account, so it may arrive
		// without credentials. The registry rejects anonymous registration
		// once an admin exists.
		if header == "" && r.Method == http.MethodPost && r.URL.Path == "/v1/identities" {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(header)
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, err.Error())
			return
		}

		claims, err := auth.ParseAndValidate(token)
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := auth.ContextWithUser(r.Context(), claims.Subject, claims.Alias, claims.Roles)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// callerAlias returns the authenticated caller's alias, empty when anonymous.
func callerAlias(r *http.Request) string {
	alias, _ := auth.AliasFromContext(r.Context())
	return alias
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

// isPublicRequest exempts health, auth and the public provenance reads from
// bearer authentication.
func isPublicRequest(r *http.Request) bool {
	for _, p := range publicPaths {
		if r.URL.Path == p {
			return true
		}
	}
	if r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/v1/shipments/") {
		if strings.HasSuffix(r.URL.Path, "/details") || strings.HasSuffix(r.URL.Path, "/history") {
			return true
		}
	}
	return false
}
