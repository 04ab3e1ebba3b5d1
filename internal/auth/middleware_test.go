package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if RoleFromContext(r.Context()) == "" && r.URL.Path != "/" && r.URL.Path != "/ws" {
			w.WriteHeader(http.StatusTeapot)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
}

func serve(handler http.Handler, method, path, token string) int {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	return resp.Code
}

func TestAuthMiddleware_NoToken(t *testing.T) {
	handler := NewMiddleware([]byte("test-secret"), NewFarmPolicy()).Wrap(okHandler())
	if code := serve(handler, http.MethodGet, "/api/sectors", ""); code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", code)
	}
}

func TestAuthMiddleware_ExemptPaths(t *testing.T) {
	handler := NewMiddleware([]byte("test-secret"), NewFarmPolicy()).Wrap(okHandler())
	for _, path := range []string{"/", "/ws"} {
		if code := serve(handler, http.MethodGet, path, ""); code != http.StatusOK {
			t.Fatalf("expected 200 for %s, got %d", path, code)
		}
	}
}

func TestAuthMiddleware_ViewerReadsButCannotClean(t *testing.T) {
	secret := []byte("test-secret")
	token := mustToken(t, secret, "viewer")
	handler := NewMiddleware(secret, NewFarmPolicy()).Wrap(okHandler())

	if code := serve(handler, http.MethodGet, "/api/statistics", token); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if code := serve(handler, http.MethodPost, "/api/clean/PNL-0001", token); code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", code)
	}
	if code := serve(handler, http.MethodPut, "/api/alerts/a-1/resolve", token); code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", code)
	}
}

func TestAuthMiddleware_OperatorCleans(t *testing.T) {
	secret := []byte("test-secret")
	token, err := IssueToken(secret, "ops-1", RoleOperator, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	handler := NewMiddleware(secret, NewFarmPolicy()).Wrap(okHandler())
	if code := serve(handler, http.MethodPost, "/api/sectors/A1/clean", token); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
}

func TestAuthMiddleware_DisabledWithoutSecret(t *testing.T) {
	handler := NewMiddleware(nil, NewFarmPolicy()).Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	if code := serve(handler, http.MethodPost, "/api/clean/PNL-0001", ""); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
}

func TestParseJWT_RejectsExpiredAndBadRole(t *testing.T) {
	secret := []byte("test-secret")
	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role: "viewer",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	signed, _ := expired.SignedString(secret)
	if _, err := ParseJWT(signed, secret); err == nil {
		t.Fatalf("expected expired token error")
	}
	if _, err := ParseJWT(mustToken(t, secret, "root"), secret); err == nil {
		t.Fatalf("expected invalid role error")
	}
	if _, err := ParseJWT(mustToken(t, []byte("other"), "viewer"), secret); err == nil {
		t.Fatalf("expected signature error")
	}
}

func mustToken(t *testing.T, secret []byte, role string) string {
	t.Helper()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestNormalizeRoleAndLevels(t *testing.T) {
	role, ok := NormalizeRole(" Operator ")
	if !ok || role != RoleOperator {
		t.Fatalf("expected operator, got %q %v", role, ok)
	}
	if _, ok := NormalizeRole("root"); ok {
		t.Fatalf("expected unknown role rejected")
	}
	if !RoleAtLeast(RoleAdmin, RoleOperator) || RoleAtLeast(RoleViewer, RoleOperator) {
		t.Fatalf("unexpected role ordering")
	}
	if RoleAtLeast(Role("root"), RoleViewer) {
		t.Fatalf("expected unknown role to grant nothing")
	}
}
