package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"aether-notes/models"
	"aether-notes/token"

	"go.uber.org/zap"
)

type contextKey string

const identityKey contextKey = "identity"

// Identity is the caller behind a verified bearer token.
type Identity struct {
	UserID models.ID
	Email  string
}

// Verifier checks a raw bearer token.
type Verifier interface {
	Verify(tokenStr string) (*token.Claims, error)
}

// RequireAuth rejects requests without a valid bearer token. All failures
// get the same 401 so callers cannot tell why authentication failed.
func RequireAuth(v Verifier, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, reason := authenticate(v, r.Header.Get("Authorization"))
			if reason != "" {
				logger.Debug("auth rejected",
					zap.String("reason", reason),
					zap.String("path", r.URL.Path))
				unauthorized(w)
				return
			}
			recordIdentity(r.Context(), id)
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

func authenticate(v Verifier, header string) (Identity, string) {
	if header == "" {
		return Identity{}, "missing authorization header"
	}
	tokenStr, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || tokenStr == "" {
		return Identity{}, "bearer prefix missing"
	}
	claims, err := v.Verify(tokenStr)
	if err != nil {
		return Identity{}, err.Error()
	}
	userID, err := models.ParseID(claims.UserID)
	if err != nil {
		return Identity{}, "user id claim is not numeric"
	}
	return Identity{UserID: userID, Email: claims.Email}, ""
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": "Unauthorized"})
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

const holderKey contextKey = "identity-holder"

// identityHolder lets RequestLogger see the caller that RequireAuth
// authenticated further down the chain.
type identityHolder struct {
	id  Identity
	set bool
}

func recordIdentity(ctx context.Context, id Identity) {
	if h, ok := ctx.Value(holderKey).(*identityHolder); ok {
		h.id, h.set = id, true
	}
}

func withHolder(ctx context.Context, h *identityHolder) context.Context {
	return context.WithValue(ctx, holderKey, h)
}

func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}
