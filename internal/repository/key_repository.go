package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/lab-key-reservation/internal/model"
)

// KeyRepo provides access to the room_keys table.  The transactional
// methods are the heart of key exclusivity: AvailableForUpdateTx locks
// the selected row so two concurrent pickups for the same room cannot
// both see the key as AVAILABLE, and UpdateStatusTx guards the status
// flip with the expected source status.
type KeyRepo struct {
	db *sql.DB
}

// NewKeyRepo returns a new KeyRepo bound to the given database.
func NewKeyRepo(db *sql.DB) *KeyRepo { return &KeyRepo{db: db} }

// Create inserts a key for a room and populates the generated ID.
func (r *KeyRepo) Create(ctx context.Context, k *model.Key) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO room_keys (room_id, label, status) VALUES (?, ?, ?)`,
		k.RoomID, k.Label, k.Status)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	k.ID = uint64(id)
	return nil
}

// ListByRoom returns all keys for a room ordered by label.
func (r *KeyRepo) ListByRoom(ctx context.Context, roomID uint64) ([]model.Key, error) {
	const q = `SELECT id, room_id, label, status, created_at, updated_at
	           FROM room_keys WHERE room_id = ? ORDER BY label`
	rows, err := r.db.QueryContext(ctx, q, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Key, 0)
	for rows.Next() {
		var k model.Key
		if err := rows.Scan(&k.ID, &k.RoomID, &k.Label, &k.Status, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// SetStatus administratively marks a key LOST, DAMAGED or AVAILABLE.
// It refuses to touch a BORROWED key (ErrConflict) because active loans
// must be closed through the return flow.
func (r *KeyRepo) SetStatus(ctx context.Context, keyID uint64, status string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE room_keys SET status = ? WHERE id = ? AND status <> ?`,
		status, keyID, model.KeyBorrowed)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var cur string
		if err := r.db.QueryRowContext(ctx, `SELECT status FROM room_keys WHERE id = ?`, keyID).Scan(&cur); err != nil {
			return err // sql.ErrNoRows when the key is missing
		}
		if cur == model.KeyBorrowed {
			return ErrConflict
		}
	}
	return nil
}

// AvailableForUpdateTx selects any AVAILABLE key for the room and locks
// the row for the remainder of the transaction. sql.ErrNoRows is
// returned when every key is borrowed, lost or damaged; callers treat
// that as a retryable business outcome, not a fault.
func (r *KeyRepo) AvailableForUpdateTx(ctx context.Context, tx *sql.Tx, roomID uint64) (*model.Key, error) {
	const q = `SELECT id, room_id, label, status, created_at, updated_at
	           FROM room_keys
	           WHERE room_id = ? AND status = ?
	           ORDER BY id
	           LIMIT 1
	           FOR UPDATE`
	var k model.Key
	err := tx.QueryRowContext(ctx, q, roomID, model.KeyAvailable).Scan(
		&k.ID, &k.RoomID, &k.Label, &k.Status, &k.CreatedAt, &k.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &k, nil
}

// UpdateStatusTx flips a key from one status to another inside the
// caller's transaction. It returns false when the key was not in the
// expected source status, which means another transaction got there
// first.
func (r *KeyRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, keyID uint64, from, to string) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE room_keys SET status = ? WHERE id = ? AND status = ?`,
		to, keyID, from)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
