package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"gekko.org/internal/audit"
)

// withAuth guards mutating methods with a bearer token when a signing
// secret is configured. Reads stay open so directory and hierarchy
// lookups keep working for unauthenticated dashboards.
func (a *API) withAuth(next http.Handler) http.Handler {
	if len(a.authSecret) == 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodDelete:
		default:
			next.ServeHTTP(w, r)
			return
		}

		subject, err := a.verifyBearer(r)
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="gekko"`)
			writeError(w, r, http.StatusUnauthorized, "invalid or missing bearer token")
			return
		}
		next.ServeHTTP(w, r.WithContext(audit.WithActor(r.Context(), subject)))
	})
}

func (a *API) verifyBearer(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", fmt.Errorf("missing bearer token")
	}
	raw := strings.TrimSpace(strings.TrimPrefix(header, prefix))

	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.authSecret, nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", fmt.Errorf("token is not valid")
	}
	subject, err := token.Claims.GetSubject()
	if err != nil || subject == "" {
		return "", fmt.Errorf("token has no subject")
	}
	return subject, nil
}
