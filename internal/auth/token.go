package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ExpiresAt reads the exp claim of a backend token without verifying the
// signature; the agent never holds the backend's signing key. Opaque or
// exp-less tokens report ok=false.
func ExpiresAt(token string) (time.Time, bool) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// Expired reports whether token's exp claim is before now. Tokens without
// a readable exp are left to the backend to judge.
func Expired(token string, now time.Time) bool {
	exp, ok := ExpiresAt(token)
	if !ok {
		return false
	}
	return !now.Before(exp)
}
