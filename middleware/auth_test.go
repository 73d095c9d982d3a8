package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"aether-notes/models"
	"aether-notes/token"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const testSecret = "middleware-test-secret"

func createTestHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFrom(r.Context())
		if !ok {
			http.Error(w, "identity not found in context", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("User ID: " + id.UserID.String()))
	})
}

func createTestToken(t *testing.T, userID string, ttl time.Duration) string {
	t.Helper()
	signed, err := token.NewIssuer(testSecret, ttl).Issue(userID, "user@example.com")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return signed
}

func serve(handler http.Handler, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api-private/notes", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestRequireAuth(t *testing.T) {
	verifier := token.NewIssuer(testSecret, time.Hour)
	handler := RequireAuth(verifier, zap.NewNop())(createTestHandler())

	t.Run("Valid token", func(t *testing.T) {
		rr := serve(handler, "Bearer "+createTestToken(t, "1", time.Hour))
		if rr.Code != http.StatusOK {
			t.Errorf("Handler returned wrong status code: got %v want %v", rr.Code, http.StatusOK)
		}
		if got := rr.Body.String(); got != "User ID: 1" {
			t.Errorf("unexpected body %q", got)
		}
	})

	valid := createTestToken(t, "1", time.Hour)
	parts := strings.Split(valid, ".")
	tampered := parts[0] + "." + parts[1] + "." + parts[2][:len(parts[2])-2] + "xx"
	nonNumeric := createTestToken(t, "abc", time.Hour)
	foreign, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, token.Claims{
		UserID:           "1",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString([]byte("some-other-secret"))

	rejected := []struct {
		name   string
		header string
	}{
		{"Missing Authorization header", ""},
		{"Invalid token format", "InvalidToken"},
		{"Basic scheme", "Basic dXNlcjpwYXNz"},
		{"Empty bearer", "Bearer "},
		{"Expired token", "Bearer " + createTestToken(t, "1", -time.Hour)},
		{"Token with wrong signature", "Bearer " + tampered},
		{"Token signed with another secret", "Bearer " + foreign},
		{"Non numeric user id", "Bearer " + nonNumeric},
	}

	var bodies []string
	for _, tt := range rejected {
		t.Run(tt.name, func(t *testing.T) {
			rr := serve(handler, tt.header)
			if rr.Code != http.StatusUnauthorized {
				t.Errorf("Handler returned wrong status code: got %v want %v", rr.Code, http.StatusUnauthorized)
			}
			bodies = append(bodies, rr.Body.String())
		})
	}

	t.Run("Failures are indistinguishable", func(t *testing.T) {
		for _, b := range bodies {
			var body map[string]string
			if err := json.Unmarshal([]byte(b), &body); err != nil {
				t.Fatalf("body is not JSON: %q", b)
			}
			if b != bodies[0] {
				t.Errorf("rejection bodies differ: %q vs %q", b, bodies[0])
			}
		}
	})

	t.Run("Context propagation", func(t *testing.T) {
		check := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFrom(r.Context())
			if !ok {
				t.Errorf("identity not found in request context")
				return
			}
			if id.UserID != models.ID(42) || id.Email != "user@example.com" {
				t.Errorf("identity in context: got %+v", id)
			}
			w.WriteHeader(http.StatusOK)
		})

		rr := serve(RequireAuth(verifier, zap.NewNop())(check), "Bearer "+createTestToken(t, "42", time.Hour))
		if rr.Code != http.StatusOK {
			t.Errorf("Handler returned wrong status code: got %v want %v", rr.Code, http.StatusOK)
		}
	})
}

func TestIdentityFromEmptyContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, ok := IdentityFrom(req.Context()); ok {
		t.Error("expected no identity on a bare request")
	}
}
