// Package logintoken signs short-lived HS256 tokens identifying the
// authenticated resource owner on authorization requests. The host session
// layer issues one after login and the authorize endpoint consumes it.
package logintoken

import (
	"errors"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

var ErrInvalid = errors.New("logintoken: invalid token")

type Claims struct {
	OwnerType string `json:"ot"`
	jwtv5.RegisteredClaims
}

// Sign issues a token naming the owner for ttl.
func Sign(secret []byte, ownerType, ownerID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		OwnerType: ownerType,
		RegisteredClaims: jwtv5.RegisteredClaims{
			Subject:   ownerID,
			IssuedAt:  jwtv5.NewNumericDate(now),
			ExpiresAt: jwtv5.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims).SignedString(secret)
}

// Parse validates signature and expiry and returns the owner identity.
func Parse(secret []byte, raw string) (ownerType, ownerID string, err error) {
	var claims Claims
	tok, err := jwtv5.ParseWithClaims(raw, &claims, func(t *jwtv5.Token) (any, error) {
		return secret, nil
	}, jwtv5.WithValidMethods([]string{"HS256"}))
	if err != nil || !tok.Valid {
		return "", "", ErrInvalid
	}
	if claims.Subject == "" || claims.OwnerType == "" {
		return "", "", ErrInvalid
	}
	return claims.OwnerType, claims.Subject, nil
}
