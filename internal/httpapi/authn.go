package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"rentfold.io/internal/identity"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

// publicPaths bypass credential resolution. The webhook endpoint carries
// its own provider-signature authentication.
var publicPaths = []string{
	"/v1/auth/login",
	"/v1/auth/refresh",
	"/webhooks/billing",
	"/metrics",
	"/healthz",
	"/readyz",
	"/v1/info",
	"/",
}

// withAuth resolves the bearer credential into the acting identity. There
// is no fallback: a missing or unverifiable credential ends the request
// with 401 before any handler runs.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, err.Error())
			return
		}

		actor, claims, err := a.signer.Resolve(token)
		if err != nil {
			if errors.Is(err, identity.ErrInvalidCredential) {
				writeError(w, r, http.StatusUnauthorized, "invalid credential")
				return
			}
			writeError(w, r, http.StatusInternalServerError, "authentication error")
			return
		}

		ctx := identity.ContextWithActor(r.Context(), actor)
		ctx = identity.ContextWithClaims(ctx, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
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

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}
