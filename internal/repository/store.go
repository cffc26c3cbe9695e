package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/lab-key-reservation/internal/model"
)

// Store bundles the per-table repositories behind a single
// unit-of-work. Services begin a transaction here and perform every
// read and write of one custody or lifecycle operation through the
// returned StoreTx, so the all-or-nothing boundary lives in exactly one
// place.
type Store struct {
	db           *sql.DB
	Reservations *ReservationRepo
	Loans        *LoanRepo
	Keys         *KeyRepo
	Rooms        *RoomRepo
	Sections     *SectionRepo
	Participants *ParticipantRepo
	AccessTokens *AccessTokenRepo
}

// NewStore wires a Store over one database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{
		db:           db,
		Reservations: NewReservationRepo(db),
		Loans:        NewLoanRepo(db),
		Keys:         NewKeyRepo(db),
		Rooms:        NewRoomRepo(db),
		Sections:     NewSectionRepo(db),
		Participants: NewParticipantRepo(db),
		AccessTokens: NewAccessTokenRepo(db),
	}
}

// Begin opens a transaction-scoped view of the store. The caller must
// Commit or Rollback.
func (s *Store) Begin(ctx context.Context) (*StoreTx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &StoreTx{tx: tx, store: s}, nil
}

// StoreTx is one transaction over the store. Its methods delegate to
// the per-table repositories with the transaction threaded through.
type StoreTx struct {
	tx    *sql.Tx
	store *Store
}

func (t *StoreTx) Commit() error   { return t.tx.Commit() }
func (t *StoreTx) Rollback() error { return t.tx.Rollback() }

func (t *StoreTx) CreateReservation(ctx context.Context, res *model.Reservation) error {
	return t.store.Reservations.CreateTx(ctx, t.tx, res)
}

func (t *StoreTx) ReservationForUpdate(ctx context.Context, id uint64) (*model.Reservation, error) {
	return t.store.Reservations.GetForUpdateTx(ctx, t.tx, id)
}

func (t *StoreTx) UpdateReservationStatus(ctx context.Context, id uint64, from, to string, approverID *uint64) (bool, error) {
	return t.store.Reservations.UpdateStatusTx(ctx, t.tx, id, from, to, approverID)
}

func (t *StoreTx) SweepNoShow(ctx context.Context, cutoff time.Time) (int64, error) {
	return t.store.Reservations.SweepNoShowTx(ctx, t.tx, cutoff)
}

func (t *StoreTx) BulkCreateClass(ctx context.Context, meetings []*model.Reservation) (created, skipped int, err error) {
	return t.store.Reservations.BulkCreateClassTx(ctx, t.tx, meetings)
}

func (t *StoreTx) DeleteUnattendedClass(ctx context.Context, sectionID uint64, now time.Time) (int64, error) {
	return t.store.Reservations.DeleteUnattendedClassTx(ctx, t.tx, sectionID, now)
}

func (t *StoreTx) LoanByReservation(ctx context.Context, reservationID uint64) (*model.Loan, error) {
	return t.store.Loans.ByReservationTx(ctx, t.tx, reservationID)
}

func (t *StoreTx) CreateLoan(ctx context.Context, l *model.Loan) error {
	return t.store.Loans.CreateTx(ctx, t.tx, l)
}

func (t *StoreTx) CloseLoan(ctx context.Context, loanID, returnedBy uint64, at time.Time) (bool, error) {
	return t.store.Loans.CloseTx(ctx, t.tx, loanID, returnedBy, at)
}

func (t *StoreTx) AvailableKeyForUpdate(ctx context.Context, roomID uint64) (*model.Key, error) {
	return t.store.Keys.AvailableForUpdateTx(ctx, t.tx, roomID)
}

func (t *StoreTx) UpdateKeyStatus(ctx context.Context, keyID uint64, from, to string) (bool, error) {
	return t.store.Keys.UpdateStatusTx(ctx, t.tx, keyID, from, to)
}

func (t *StoreTx) RoomActive(ctx context.Context, roomID uint64) (bool, error) {
	return t.store.Rooms.ActiveTx(ctx, t.tx, roomID)
}

func (t *StoreTx) IsEnrolled(ctx context.Context, sectionID, userID uint64) (bool, error) {
	return t.store.Sections.IsEnrolledTx(ctx, t.tx, sectionID, userID)
}

func (t *StoreTx) IsParticipant(ctx context.Context, reservationID, userID uint64) (bool, error) {
	return t.store.Participants.IsParticipantTx(ctx, t.tx, reservationID, userID)
}

func (t *StoreTx) InsertAccessToken(ctx context.Context, tok *model.AccessToken) error {
	return t.store.AccessTokens.InsertTx(ctx, t.tx, tok)
}

func (t *StoreTx) ConsumeAccessToken(ctx context.Context, tokenHash, expectedKind string, now time.Time) (*model.AccessToken, error) {
	return t.store.AccessTokens.ConsumeTx(ctx, t.tx, tokenHash, expectedKind, now)
}

func (t *StoreTx) VoidUnusedAccessTokens(ctx context.Context, reservationID uint64, kind string, now time.Time) error {
	return t.store.AccessTokens.VoidUnusedTx(ctx, t.tx, reservationID, kind, now)
}
