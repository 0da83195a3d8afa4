package httpapi

import (
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signToken(t *testing.T, secret []byte, subject string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString(secret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestAuthGuardsMutations(t *testing.T) {
	secret := []byte("test-secret")
	api := newTestAPI(t, secret)

	// Unauthenticated mutation is rejected.
	resp := api.post("/v1/structures", map[string]any{"name": "Acme"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
	if resp.Header.Get("WWW-Authenticate") == "" {
		t.Fatalf("expected WWW-Authenticate challenge")
	}

	// Wrong signing key is rejected.
	resp = api.do(http.MethodPost, "/v1/structures", map[string]any{"name": "Acme"}, map[string]string{
		"Authorization": "Bearer " + signToken(t, []byte("other-secret"), "admin"),
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 for bad signature", resp.StatusCode)
	}

	// A valid token passes through.
	resp = api.do(http.MethodPost, "/v1/structures", map[string]any{"name": "Acme"}, map[string]string{
		"Authorization": "Bearer " + signToken(t, secret, "admin"),
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201 with valid token", resp.StatusCode)
	}

	// Reads stay open without a token.
	resp = api.get("/v1/hierarchy/tree", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("read status = %d, want 200", resp.StatusCode)
	}
}

func TestAuthRejectsTokenWithoutSubject(t *testing.T) {
	secret := []byte("test-secret")
	api := newTestAPI(t, secret)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString(secret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	resp := api.do(http.MethodPost, "/v1/structures", map[string]any{"name": "Acme"}, map[string]string{
		"Authorization": "Bearer " + signed,
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 for subjectless token", resp.StatusCode)
	}
}
