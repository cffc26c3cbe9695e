package service

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/iliyamo/lab-key-reservation/internal/model"
)

// mockStore and mockTx stand in for the repository unit of work in
// engine tests.

type mockStore struct{ mock.Mock }

func (m *mockStore) Begin(ctx context.Context) (Tx, error) {
	args := m.Called(ctx)
	if tx := args.Get(0); tx != nil {
		return tx.(Tx), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockTx struct{ mock.Mock }

func (m *mockTx) Commit() error   { return m.Called().Error(0) }
func (m *mockTx) Rollback() error { return m.Called().Error(0) }

func (m *mockTx) CreateReservation(ctx context.Context, res *model.Reservation) error {
	return m.Called(ctx, res).Error(0)
}

func (m *mockTx) ReservationForUpdate(ctx context.Context, id uint64) (*model.Reservation, error) {
	args := m.Called(ctx, id)
	if r := args.Get(0); r != nil {
		return r.(*model.Reservation), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockTx) UpdateReservationStatus(ctx context.Context, id uint64, from, to string, approverID *uint64) (bool, error) {
	args := m.Called(ctx, id, from, to, approverID)
	return args.Bool(0), args.Error(1)
}

func (m *mockTx) SweepNoShow(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockTx) BulkCreateClass(ctx context.Context, meetings []*model.Reservation) (int, int, error) {
	args := m.Called(ctx, meetings)
	return args.Int(0), args.Int(1), args.Error(2)
}

func (m *mockTx) DeleteUnattendedClass(ctx context.Context, sectionID uint64, now time.Time) (int64, error) {
	args := m.Called(ctx, sectionID, now)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockTx) LoanByReservation(ctx context.Context, reservationID uint64) (*model.Loan, error) {
	args := m.Called(ctx, reservationID)
	if l := args.Get(0); l != nil {
		return l.(*model.Loan), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockTx) CreateLoan(ctx context.Context, l *model.Loan) error {
	return m.Called(ctx, l).Error(0)
}

func (m *mockTx) CloseLoan(ctx context.Context, loanID, returnedBy uint64, at time.Time) (bool, error) {
	args := m.Called(ctx, loanID, returnedBy, at)
	return args.Bool(0), args.Error(1)
}

func (m *mockTx) AvailableKeyForUpdate(ctx context.Context, roomID uint64) (*model.Key, error) {
	args := m.Called(ctx, roomID)
	if k := args.Get(0); k != nil {
		return k.(*model.Key), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockTx) UpdateKeyStatus(ctx context.Context, keyID uint64, from, to string) (bool, error) {
	args := m.Called(ctx, keyID, from, to)
	return args.Bool(0), args.Error(1)
}

func (m *mockTx) RoomActive(ctx context.Context, roomID uint64) (bool, error) {
	args := m.Called(ctx, roomID)
	return args.Bool(0), args.Error(1)
}

func (m *mockTx) IsEnrolled(ctx context.Context, sectionID, userID uint64) (bool, error) {
	args := m.Called(ctx, sectionID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *mockTx) IsParticipant(ctx context.Context, reservationID, userID uint64) (bool, error) {
	args := m.Called(ctx, reservationID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *mockTx) InsertAccessToken(ctx context.Context, tok *model.AccessToken) error {
	return m.Called(ctx, tok).Error(0)
}

func (m *mockTx) ConsumeAccessToken(ctx context.Context, tokenHash, expectedKind string, now time.Time) (*model.AccessToken, error) {
	args := m.Called(ctx, tokenHash, expectedKind, now)
	if t := args.Get(0); t != nil {
		return t.(*model.AccessToken), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockTx) VoidUnusedAccessTokens(ctx context.Context, reservationID uint64, kind string, now time.Time) error {
	return m.Called(ctx, reservationID, kind, now).Error(0)
}

// newStoreWithTx wires a store that hands out tx on every Begin.
func newStoreWithTx(tx *mockTx) *mockStore {
	store := new(mockStore)
	store.On("Begin", mock.Anything).Return(tx, nil)
	return store
}
