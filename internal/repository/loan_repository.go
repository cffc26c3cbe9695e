package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/lab-key-reservation/internal/model"
)

// LoanRepo provides access to the loans table.  Loans are owned
// exclusively by the custody engine: they are created atomically with
// the reservation's transition to CHECKED_IN and closed atomically with
// its transition to COMPLETED.
type LoanRepo struct {
	db *sql.DB
}

// NewLoanRepo returns a new LoanRepo bound to the given database.
func NewLoanRepo(db *sql.DB) *LoanRepo { return &LoanRepo{db: db} }

// scanLoan reads one loan row.
func scanLoan(row interface {
	Scan(dest ...interface{}) error
}) (*model.Loan, error) {
	var (
		l          model.Loan
		handledBy  sql.NullInt64
		checkedIn  sql.NullTime
		returnedBy sql.NullInt64
	)
	err := row.Scan(&l.ID, &l.ReservationID, &l.KeyID, &l.BorrowerID, &handledBy,
		&l.CheckedOutAt, &checkedIn, &returnedBy)
	if err != nil {
		return nil, err
	}
	if handledBy.Valid {
		v := uint64(handledBy.Int64)
		l.HandledBy = &v
	}
	if checkedIn.Valid {
		t := checkedIn.Time
		l.CheckedInAt = &t
	}
	if returnedBy.Valid {
		v := uint64(returnedBy.Int64)
		l.ReturnedBy = &v
	}
	return &l, nil
}

const loanColumns = `id, reservation_id, key_id, borrower_id, handled_by,
	checked_out_at, checked_in_at, returned_by`

// CreateTx inserts a loan inside the caller's transaction and populates
// the generated ID.  The unique key on reservation_id turns a
// double-pickup race into ErrConflict for the losing transaction.
func (r *LoanRepo) CreateTx(ctx context.Context, tx *sql.Tx, l *model.Loan) error {
	const q = `INSERT INTO loans (reservation_id, key_id, borrower_id, handled_by, checked_out_at)
	           VALUES (?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q,
		l.ReservationID, l.KeyID, l.BorrowerID, nullableID(l.HandledBy), l.CheckedOutAt.UTC())
	if err != nil {
		if isDuplicate(err) {
			return ErrConflict
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	l.ID = uint64(id)
	return nil
}

// ByReservationTx loads the loan for a reservation inside the caller's
// transaction. sql.ErrNoRows means the reservation never passed pickup.
func (r *LoanRepo) ByReservationTx(ctx context.Context, tx *sql.Tx, reservationID uint64) (*model.Loan, error) {
	return scanLoan(tx.QueryRowContext(ctx,
		`SELECT `+loanColumns+` FROM loans WHERE reservation_id = ?`, reservationID))
}

// ByReservation loads the loan for a reservation outside a transaction.
func (r *LoanRepo) ByReservation(ctx context.Context, reservationID uint64) (*model.Loan, error) {
	return scanLoan(r.db.QueryRowContext(ctx,
		`SELECT `+loanColumns+` FROM loans WHERE reservation_id = ?`, reservationID))
}

// CloseTx sets checked_in_at and the returning identity inside the
// caller's transaction.  The checked_in_at IS NULL guard makes closing
// idempotence-hostile on purpose: a loan closes exactly once, and the
// second closer observes zero affected rows.
func (r *LoanRepo) CloseTx(ctx context.Context, tx *sql.Tx, loanID uint64, returnedBy uint64, at time.Time) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE loans SET checked_in_at = ?, returned_by = ? WHERE id = ? AND checked_in_at IS NULL`,
		at.UTC(), returnedBy, loanID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
