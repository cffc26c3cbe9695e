package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/lab-key-reservation/internal/model"
)

// RoomRepo provides CRUD operations for rooms.  Rooms are maintained
// through the admin endpoints; the custody core only reads the
// is_active flag.
type RoomRepo struct {
	db *sql.DB
}

// NewRoomRepo returns a new RoomRepo bound to the given database.
func NewRoomRepo(db *sql.DB) *RoomRepo { return &RoomRepo{db: db} }

// DB exposes the underlying handle so handlers can open transactions
// that span multiple repositories.
func (r *RoomRepo) DB() *sql.DB { return r.db }

// Create inserts a room and populates the generated ID.
func (r *RoomRepo) Create(ctx context.Context, room *model.Room) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO rooms (name, location, is_active) VALUES (?, ?, ?)`,
		room.Name, room.Location, room.IsActive)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	room.ID = uint64(id)
	return nil
}

// Update modifies name, location and active flag of an existing room.
// sql.ErrNoRows is returned when the room does not exist.
func (r *RoomRepo) Update(ctx context.Context, room *model.Room) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE rooms SET name = ?, location = ?, is_active = ? WHERE id = ?`,
		room.Name, room.Location, room.IsActive, room.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// RowsAffected is zero both for missing rows and for no-op
		// updates; verify existence before reporting not-found.
		var exists int
		if err := r.db.QueryRowContext(ctx, `SELECT 1 FROM rooms WHERE id = ?`, room.ID).Scan(&exists); err != nil {
			return err // sql.ErrNoRows when the room is missing
		}
	}
	return nil
}

// GetByID loads a room by primary key.
func (r *RoomRepo) GetByID(ctx context.Context, id uint64) (*model.Room, error) {
	const q = `SELECT id, name, location, is_active, created_at, updated_at FROM rooms WHERE id = ?`
	var room model.Room
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&room.ID, &room.Name, &room.Location, &room.IsActive, &room.CreatedAt, &room.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// List returns all rooms ordered by name.  When activeOnly is set,
// inactive rooms are filtered out.
func (r *RoomRepo) List(ctx context.Context, activeOnly bool) ([]model.Room, error) {
	q := `SELECT id, name, location, is_active, created_at, updated_at FROM rooms`
	if activeOnly {
		q += ` WHERE is_active = 1`
	}
	q += ` ORDER BY name`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Room, 0)
	for rows.Next() {
		var room model.Room
		if err := rows.Scan(&room.ID, &room.Name, &room.Location, &room.IsActive, &room.CreatedAt, &room.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, room)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ActiveTx reports whether the room exists and accepts reservations.
// It runs inside the caller's transaction so the flag is read under the
// same snapshot as the rest of a custody operation.
func (r *RoomRepo) ActiveTx(ctx context.Context, tx *sql.Tx, roomID uint64) (bool, error) {
	var active bool
	err := tx.QueryRowContext(ctx, `SELECT is_active FROM rooms WHERE id = ?`, roomID).Scan(&active)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return active, nil
}
