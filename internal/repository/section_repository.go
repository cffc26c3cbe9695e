package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/lab-key-reservation/internal/model"
)

// SectionRepo provides read access to course sections and their
// enrollment roster.  Catalog maintenance (imports, enrollment edits)
// happens outside this service; the custody core only asks the
// membership question during pickup/return authorization.
type SectionRepo struct {
	db *sql.DB
}

// NewSectionRepo returns a new SectionRepo bound to the given database.
func NewSectionRepo(db *sql.DB) *SectionRepo { return &SectionRepo{db: db} }

// GetByID loads a section by primary key.
func (r *SectionRepo) GetByID(ctx context.Context, id uint64) (*model.Section, error) {
	const q = `SELECT id, course_name, term, created_at FROM sections WHERE id = ?`
	var s model.Section
	err := r.db.QueryRowContext(ctx, q, id).Scan(&s.ID, &s.CourseName, &s.Term, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// IsEnrolledTx reports whether the user is enrolled in the section.
// It runs inside the caller's transaction so the authorization read
// shares the snapshot of the custody operation it gates.
func (r *SectionRepo) IsEnrolledTx(ctx context.Context, tx *sql.Tx, sectionID, userID uint64) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx,
		`SELECT 1 FROM enrollments WHERE section_id = ? AND user_id = ? LIMIT 1`,
		sectionID, userID).Scan(&one)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
