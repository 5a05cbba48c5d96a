package rest

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type ctxKey string

const (
	ownerKey ctxKey = "owner_id"
	tokenKey ctxKey = "bearer_token"
)

// OwnerFromContext returns the authenticated owner id.
func OwnerFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ownerKey).(string)
	return v, ok && v != ""
}

// tokenFromContext returns the raw bearer token for forwarding.
func tokenFromContext(ctx context.Context) string {
	v, _ := ctx.Value(tokenKey).(string)
	return v
}

type ownerClaims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

var errNoOwner = errors.New("token has no subject")

// Authenticate verifies an HS256 bearer token and stores its owner id
// (sub, falling back to userId) and the raw token in the request context.
func Authenticate(secret []byte, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := r.Header.Get("Authorization")
		if !strings.HasPrefix(h, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "No token, authorization denied")
			return
		}
		raw := strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))

		owner, err := verify(raw, secret)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Token is not valid")
			return
		}

		ctx := context.WithValue(r.Context(), ownerKey, owner)
		ctx = context.WithValue(ctx, tokenKey, raw)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func verify(raw string, secret []byte) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("no signing secret configured")
	}
	var claims ownerClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	if claims.Subject != "" {
		return claims.Subject, nil
	}
	if claims.UserID != "" {
		return claims.UserID, nil
	}
	return "", errNoOwner
}
