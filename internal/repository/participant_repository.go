package repository

import (
	"context"
	"database/sql"
)

// ParticipantRepo manages the co-user roster of ad-hoc reservations.
// Participants may pick up and return the key on behalf of the
// requester. The roster size cap is enforced by the registration
// surface, not here.
type ParticipantRepo struct {
	db *sql.DB
}

// NewParticipantRepo returns a new ParticipantRepo bound to the given database.
func NewParticipantRepo(db *sql.DB) *ParticipantRepo { return &ParticipantRepo{db: db} }

// Add registers a user on a reservation's roster. Adding the same user
// twice is a no-op thanks to the unique key.
func (r *ParticipantRepo) Add(ctx context.Context, reservationID, userID uint64) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT IGNORE INTO reservation_participants (reservation_id, user_id) VALUES (?, ?)`,
		reservationID, userID)
	return err
}

// Remove deletes a user from a reservation's roster.
func (r *ParticipantRepo) Remove(ctx context.Context, reservationID, userID uint64) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM reservation_participants WHERE reservation_id = ? AND user_id = ?`,
		reservationID, userID)
	return err
}

// List returns the user IDs registered on a reservation.
func (r *ParticipantRepo) List(ctx context.Context, reservationID uint64) ([]uint64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id FROM reservation_participants WHERE reservation_id = ? ORDER BY user_id`,
		reservationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]uint64, 0)
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// IsParticipantTx reports roster membership inside the caller's
// transaction, matching the snapshot of the custody operation.
func (r *ParticipantRepo) IsParticipantTx(ctx context.Context, tx *sql.Tx, reservationID, userID uint64) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx,
		`SELECT 1 FROM reservation_participants WHERE reservation_id = ? AND user_id = ? LIMIT 1`,
		reservationID, userID).Scan(&one)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
