package token

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestIssueAndVerify(t *testing.T) {
	issuer := NewIssuer("test-secret", 6*time.Hour)

	signed, err := issuer.Issue("42", "a@b.com")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	claims, err := issuer.Verify(signed)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if claims.UserID != "42" || claims.Email != "a@b.com" {
		t.Errorf("Verify() claims = %+v", claims)
	}

	lifetime := claims.ExpiresAt.Sub(claims.IssuedAt.Time)
	if lifetime != 6*time.Hour {
		t.Errorf("token lifetime = %v, want 6h", lifetime)
	}
}

func TestVerifyRejects(t *testing.T) {
	issuer := NewIssuer("validation-secret", time.Hour)
	valid, _ := issuer.Issue("1", "a@b.com")

	expiredIssuer := NewIssuer("validation-secret", time.Hour)
	expiredIssuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, _ := expiredIssuer.Issue("1", "a@b.com")

	other, _ := NewIssuer("wrong-secret", time.Hour).Issue("1", "a@b.com")

	parts := strings.Split(valid, ".")
	tampered := parts[0] + "." + parts[1] + "." + parts[2][:len(parts[2])-2] + "xx"

	noExp, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{UserID: "1"}).SignedString([]byte("validation-secret"))
	noUser, _ := issuer.Issue("", "a@b.com")
	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		UserID:           "1",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := []struct {
		name  string
		token string
	}{
		{"expired token", expired},
		{"wrong secret", other},
		{"tampered signature", tampered},
		{"invalid token format", "invalid.token.format"},
		{"empty token", ""},
		{"missing expiry", noExp},
		{"missing user id", noUser},
		{"none algorithm", none},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := issuer.Verify(tt.token)
			if !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Verify() error = %v, want ErrInvalidToken", err)
			}
		})
	}
}
