package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/lab-key-reservation/internal/model"
)

// AccessTokenRepo persists single-use kiosk tokens.  Only SHA-256
// digests reach this table; issuance returns the raw secret to the
// caller exactly once.  Consumption happens inside the same transaction
// as the custody change the token authorizes so that a token can never
// be burned without its effect landing, or vice versa.
type AccessTokenRepo struct {
	db *sql.DB
}

// NewAccessTokenRepo returns a new AccessTokenRepo bound to the given database.
func NewAccessTokenRepo(db *sql.DB) *AccessTokenRepo { return &AccessTokenRepo{db: db} }

// InsertTx stores a token hash row inside the caller's transaction and
// populates the generated ID.
func (r *AccessTokenRepo) InsertTx(ctx context.Context, tx *sql.Tx, t *model.AccessToken) error {
	const q = `INSERT INTO access_tokens (reservation_id, kind, token_hash, expires_at)
	           VALUES (?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, t.ReservationID, t.Kind, t.TokenHash, t.ExpiresAt.UTC())
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)
	return nil
}

// checkConsumable decides whether a loaded token row may be redeemed
// for expectedKind at instant now.  The check order fixes which error
// wins when several apply: kind first, then single-use, then expiry.  A
// token is live through its exact expiry instant; only a strictly later
// now rejects it.
func checkConsumable(t *model.AccessToken, expectedKind string, now time.Time) error {
	if t.Kind != expectedKind {
		return ErrWrongKind
	}
	if t.UsedAt != nil {
		return ErrAlreadyUsed
	}
	if now.UTC().After(t.ExpiresAt) {
		return ErrTokenExpired
	}
	return nil
}

// ConsumeTx looks a token up by hash, validates kind and expiry, and
// marks it used — all inside the caller's transaction with the row
// locked.  Failures are reported as ErrTokenNotFound, ErrWrongKind,
// ErrAlreadyUsed or ErrTokenExpired.  On success the full token row is
// returned so the caller can resolve the owning reservation.
func (r *AccessTokenRepo) ConsumeTx(ctx context.Context, tx *sql.Tx, tokenHash, expectedKind string, now time.Time) (*model.AccessToken, error) {
	const q = `SELECT id, reservation_id, kind, token_hash, expires_at, used_at, created_at
	           FROM access_tokens WHERE token_hash = ? FOR UPDATE`
	var (
		t      model.AccessToken
		usedAt sql.NullTime
	)
	err := tx.QueryRowContext(ctx, q, tokenHash).Scan(
		&t.ID, &t.ReservationID, &t.Kind, &t.TokenHash, &t.ExpiresAt, &usedAt, &t.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}
	if usedAt.Valid {
		t.UsedAt = &usedAt.Time
	}
	if err := checkConsumable(&t, expectedKind, now); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE access_tokens SET used_at = ? WHERE id = ?`, now.UTC(), t.ID); err != nil {
		return nil, err
	}
	used := now.UTC()
	t.UsedAt = &used
	return &t, nil
}

// VoidUnusedTx expires every unused token of a kind for a reservation.
// A successful kiosk pickup voids prior RETURN tokens before minting a
// fresh one so at most one live RETURN secret exists per reservation.
func (r *AccessTokenRepo) VoidUnusedTx(ctx context.Context, tx *sql.Tx, reservationID uint64, kind string, now time.Time) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE access_tokens SET expires_at = ? WHERE reservation_id = ? AND kind = ? AND used_at IS NULL`,
		now.UTC(), reservationID, kind)
	return err
}
