// Package token implements the two credential formats used by the
// custody flows: short-lived signed identity tokens for the
// staff-mediated channel and single-use opaque secrets for the kiosk
// channel.  Neither format leaks its wire encoding to callers.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5" // JWT library provides the signed envelope and constant-time HMAC verification
)

// Identity token verification failures.  Verify collapses every parser
// failure into one of these so the presenting UI can give an actionable
// message without inspecting library internals.
var (
	ErrBadFormat    = errors.New("identity token: bad format")
	ErrBadSignature = errors.New("identity token: bad signature")
	ErrBadPayload   = errors.New("identity token: bad payload")
	ErrExpired      = errors.New("identity token: expired")
)

// IdentityIssuer signs and verifies short-lived identity assertions of
// the form {subjectId, expiresAt}.  Tokens are HS256 JWTs; compromise
// is bounded purely by the short TTL, there is no server-side storage
// or revocation list.
type IdentityIssuer struct {
	secret []byte
}

// NewIdentityIssuer returns an issuer bound to the given signing secret.
func NewIdentityIssuer(secret string) *IdentityIssuer {
	return &IdentityIssuer{secret: []byte(secret)}
}

// Sign produces an identity token asserting subjectID for ttl from now.
func (i *IdentityIssuer) Sign(subjectID uint64, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub": subjectID,
		"exp": now.Add(ttl).Unix(),
		"iat": now.Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(i.secret)
}

// Verify decodes raw, checks the HMAC signature and expiry, and returns
// the asserted subject ID.  Failures map to ErrBadFormat,
// ErrBadSignature, ErrBadPayload or ErrExpired.
func (i *IdentityIssuer) Verify(raw string) (uint64, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrBadSignature
		}
		return i.secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return 0, ErrExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return 0, ErrBadSignature
		case errors.Is(err, jwt.ErrTokenMalformed):
			return 0, ErrBadFormat
		default:
			return 0, ErrBadFormat
		}
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return 0, ErrBadPayload
	}
	// Numeric JSON claims decode as float64.
	sub, ok := claims["sub"].(float64)
	if !ok || sub <= 0 {
		return 0, ErrBadPayload
	}
	return uint64(sub), nil
}
