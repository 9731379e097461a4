package session

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// signID builds the cookie value: an HS256 JWT whose jti claim is the
// session identifier.  The signature stops clients from forging ids; the
// exp claim bounds the cookie's lifetime independently of Redis.
func signID(secret []byte, id string, ttl time.Duration) (string, time.Time, error) {
	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims := jwt.RegisteredClaims{
		ID:        id,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// parseID verifies a cookie value and returns the session identifier.
func parseID(secret []byte, raw string) (string, error) {
	claims := jwt.RegisteredClaims{}
	tok, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil || !tok.Valid {
		return "", ErrNoSession
	}
	if strings.TrimSpace(claims.ID) == "" {
		return "", ErrNoSession
	}
	return claims.ID, nil
}
