package model

import "time"

// Access token kinds.  A PICKUP token authorizes the kiosk pickup of an
// APPROVED reservation; a RETURN token authorizes the kiosk return of a
// CHECKED_IN one.  RETURN tokens are minted automatically as a side
// effect of a successful kiosk pickup.
const (
	TokenPickup = "PICKUP"
	TokenReturn = "RETURN"
)

// AccessToken models a single-use opaque secret for the self-service
// kiosk flow.  Only the SHA-256 hex digest of the secret is stored;
// the raw value is returned to the caller exactly once at issue time
// and is never recoverable afterwards.
//
// Fields:
//  ID            – primary key identifier.
//  ReservationID – reservation this token is scoped to.
//  Kind          – PICKUP or RETURN.
//  TokenHash     – SHA-256 hex digest of the raw secret.
//  ExpiresAt     – expiration timestamp.
//  UsedAt        – when the token was consumed (nil until then).
//  CreatedAt     – timestamp of creation.
type AccessToken struct {
	ID            uint64     // access_tokens.id
	ReservationID uint64     // access_tokens.reservation_id
	Kind          string     // access_tokens.kind
	TokenHash     string     // access_tokens.token_hash
	ExpiresAt     time.Time  // access_tokens.expires_at
	UsedAt        *time.Time // access_tokens.used_at (nullable)
	CreatedAt     time.Time  // access_tokens.created_at
}
