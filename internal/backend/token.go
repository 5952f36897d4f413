package backend

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenUsable reports whether token should be sent. Opaque tokens are always
// sent; a JWT is sent only while its exp claim, if any, is in the future.
// The signature is not checked here: the backend verifies it.
func tokenUsable(token string, now time.Time) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return true
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return true
	}
	return now.Before(exp.Time)
}
