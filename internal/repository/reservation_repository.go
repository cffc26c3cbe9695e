package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/lab-key-reservation/internal/model"
)

// ReservationRepo provides CRUD operations for reservations.  All
// timestamp columns are stored in UTC; the date column is the day
// bucket in the reservation timezone.  Status transitions that compete
// with the custody engine or the no-show sweeper are guarded updates:
// the expected source status is part of the WHERE clause so that the
// losing transaction observes zero affected rows instead of silently
// overwriting the winner.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

// DB exposes the underlying handle so services can open transactions
// spanning multiple repositories.
func (r *ReservationRepo) DB() *sql.DB { return r.db }

const reservationColumns = `id, type, status, room_id, section_id, requester_id, approver_id,
	date, slot_id, start_at, end_at, note, created_at`

// scanReservation reads one reservation row from a Scanner.
func scanReservation(row interface {
	Scan(dest ...interface{}) error
}) (*model.Reservation, error) {
	var (
		res       model.Reservation
		sectionID sql.NullInt64
		approver  sql.NullInt64
		note      sql.NullString
	)
	err := row.Scan(
		&res.ID, &res.Type, &res.Status, &res.RoomID, &sectionID, &res.RequesterID, &approver,
		&res.Date, &res.SlotID, &res.StartAt, &res.EndAt, &note, &res.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if sectionID.Valid {
		v := uint64(sectionID.Int64)
		res.SectionID = &v
	}
	if approver.Valid {
		v := uint64(approver.Int64)
		res.ApproverID = &v
	}
	if note.Valid {
		n := note.String
		res.Note = &n
	}
	return &res, nil
}

// CreateTx inserts a new reservation within the scope of an existing
// transaction and populates the generated ID.  The (room_id, date,
// slot_id) unique key closes the race between concurrent creations;
// a violation is surfaced as ErrSlotConflict.
func (r *ReservationRepo) CreateTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
	const q = `INSERT INTO reservations
		(type, status, room_id, section_id, requester_id, approver_id, date, slot_id, start_at, end_at, note)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, q,
		res.Type, res.Status, res.RoomID, nullableID(res.SectionID), res.RequesterID,
		nullableID(res.ApproverID), res.Date, res.SlotID, res.StartAt.UTC(), res.EndAt.UTC(),
		nullableStr(res.Note))
	if err != nil {
		if isDuplicate(err) {
			return ErrSlotConflict
		}
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = uint64(id)
	return nil
}

// GetByID loads a reservation outside any transaction.
func (r *ReservationRepo) GetByID(ctx context.Context, id uint64) (*model.Reservation, error) {
	return scanReservation(r.db.QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id))
}

// GetForUpdateTx loads a reservation and locks its row for the
// remainder of the transaction.  Every state transition goes through
// this lock so that a decision, a cancellation, a pickup and the
// no-show sweeper serialize on the row instead of interleaving.
func (r *ReservationRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Reservation, error) {
	return scanReservation(tx.QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE id = ? FOR UPDATE`, id))
}

// UpdateStatusTx flips a reservation from one status to another inside
// the caller's transaction, optionally recording the approver.  It
// returns false when the reservation was not in the expected source
// status — the caller lost a race and must treat the operation as a
// state conflict rather than retry blindly.
func (r *ReservationRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, from, to string, approverID *uint64) (bool, error) {
	var (
		res sql.Result
		err error
	)
	if approverID != nil {
		res, err = tx.ExecContext(ctx,
			`UPDATE reservations SET status = ?, approver_id = ? WHERE id = ? AND status = ?`,
			to, *approverID, id, from)
	} else {
		res, err = tx.ExecContext(ctx,
			`UPDATE reservations SET status = ? WHERE id = ? AND status = ?`,
			to, id, from)
	}
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ListByRequester returns all reservations created by a user, newest
// first.
func (r *ReservationRepo) ListByRequester(ctx context.Context, requesterID uint64) ([]model.Reservation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE requester_id = ? ORDER BY start_at DESC`,
		requesterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Reservation, 0)
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListPending returns all PENDING reservations for the approval queue,
// oldest first.
func (r *ReservationRepo) ListPending(ctx context.Context) ([]model.Reservation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE status = ? ORDER BY created_at`,
		model.ReservationPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Reservation, 0)
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// OccupiedSlots returns the slot IDs taken for a room on a day.  A slot
// counts as occupied unless its reservation reached a terminal
// non-attended state.
func (r *ReservationRepo) OccupiedSlots(ctx context.Context, roomID uint64, date string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT slot_id FROM reservations
		 WHERE room_id = ? AND date = ? AND status NOT IN (?, ?, ?)`,
		roomID, date, model.ReservationRejected, model.ReservationCancelled, model.ReservationNoShow)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]string, 0)
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// SweepNoShowTx forfeits every APPROVED reservation whose pickup window
// elapsed without a loan.  One set-based statement, idempotent: a
// second run with no intervening writes affects zero rows.  The cutoff
// is start_at plus the grace period, computed by the caller.
func (r *ReservationRepo) SweepNoShowTx(ctx context.Context, tx *sql.Tx, cutoff time.Time) (int64, error) {
	const q = `UPDATE reservations r
	           LEFT JOIN loans l ON l.reservation_id = r.id
	           SET r.status = ?
	           WHERE r.status = ? AND r.start_at <= ? AND l.id IS NULL`
	res, err := tx.ExecContext(ctx, q, model.ReservationNoShow, model.ReservationApproved, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// BulkCreateClassTx inserts one APPROVED IN_CLASS reservation per
// meeting in the provided list, skipping rows that collide with an
// existing (room, date, slot) occupancy.  It returns how many rows were
// inserted and how many were skipped.
func (r *ReservationRepo) BulkCreateClassTx(ctx context.Context, tx *sql.Tx, meetings []*model.Reservation) (created, skipped int, err error) {
	for _, m := range meetings {
		if err := r.CreateTx(ctx, tx, m); err != nil {
			if err == ErrSlotConflict {
				skipped++
				continue
			}
			return created, skipped, err
		}
		created++
	}
	return created, skipped, nil
}

// DeleteUnattendedClassTx bulk-clears class-generated rows for a
// section that have not been attended: future APPROVED reservations
// with no loan.  This is the only path that physically deletes
// reservations.
func (r *ReservationRepo) DeleteUnattendedClassTx(ctx context.Context, tx *sql.Tx, sectionID uint64, now time.Time) (int64, error) {
	const q = `DELETE r FROM reservations r
	           LEFT JOIN loans l ON l.reservation_id = r.id
	           WHERE r.type = ? AND r.section_id = ? AND r.status = ?
	             AND r.start_at > ? AND l.id IS NULL`
	res, err := tx.ExecContext(ctx, q, model.ReservationInClass, sectionID, model.ReservationApproved, now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// nullableID converts an optional numeric reference for insertion.
func nullableID(v *uint64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

// nullableStr converts an optional string for insertion.
func nullableStr(v *string) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
