package service

import (
	"context"
	"time"

	"github.com/iliyamo/lab-key-reservation/internal/model"
	"github.com/iliyamo/lab-key-reservation/internal/repository"
)

// Store opens transaction-scoped views of persistent state. The
// concrete implementation is repository.Store; tests substitute mocks.
type Store interface {
	Begin(ctx context.Context) (Tx, error)
}

// Tx is one unit of work. Every multi-entity state transition in the
// engines runs entirely through a single Tx so that reservation, loan,
// key and token writes commit together or not at all.
type Tx interface {
	Commit() error
	Rollback() error

	CreateReservation(ctx context.Context, res *model.Reservation) error
	ReservationForUpdate(ctx context.Context, id uint64) (*model.Reservation, error)
	UpdateReservationStatus(ctx context.Context, id uint64, from, to string, approverID *uint64) (bool, error)
	SweepNoShow(ctx context.Context, cutoff time.Time) (int64, error)
	BulkCreateClass(ctx context.Context, meetings []*model.Reservation) (created, skipped int, err error)
	DeleteUnattendedClass(ctx context.Context, sectionID uint64, now time.Time) (int64, error)

	LoanByReservation(ctx context.Context, reservationID uint64) (*model.Loan, error)
	CreateLoan(ctx context.Context, l *model.Loan) error
	CloseLoan(ctx context.Context, loanID, returnedBy uint64, at time.Time) (bool, error)

	AvailableKeyForUpdate(ctx context.Context, roomID uint64) (*model.Key, error)
	UpdateKeyStatus(ctx context.Context, keyID uint64, from, to string) (bool, error)

	RoomActive(ctx context.Context, roomID uint64) (bool, error)
	IsEnrolled(ctx context.Context, sectionID, userID uint64) (bool, error)
	IsParticipant(ctx context.Context, reservationID, userID uint64) (bool, error)

	InsertAccessToken(ctx context.Context, tok *model.AccessToken) error
	ConsumeAccessToken(ctx context.Context, tokenHash, expectedKind string, now time.Time) (*model.AccessToken, error)
	VoidUnusedAccessTokens(ctx context.Context, reservationID uint64, kind string, now time.Time) error
}

// EventPublisher pushes domain events to the message broker. Publish
// failures are logged by callers and never fail the request.
type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// sqlStore adapts *repository.Store to the Store interface; the
// adapter exists only because Go interfaces are invariant in return
// types.
type sqlStore struct{ s *repository.Store }

// NewSQLStore wraps a repository store for use by the engines.
func NewSQLStore(s *repository.Store) Store { return sqlStore{s: s} }

func (a sqlStore) Begin(ctx context.Context) (Tx, error) { return a.s.Begin(ctx) }
