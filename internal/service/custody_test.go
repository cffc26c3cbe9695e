package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/iliyamo/lab-key-reservation/internal/model"
	"github.com/iliyamo/lab-key-reservation/internal/repository"
	"github.com/iliyamo/lab-key-reservation/internal/token"
)

func newCustodyService(store Store, now time.Time) *CustodyService {
	svc := NewCustodyService(store, nil, testPolicy(), zerolog.Nop())
	svc.Now = func() time.Time { return now }
	return svc
}

func approvedReservation() *model.Reservation {
	return &model.Reservation{
		ID:          10,
		Type:        model.ReservationAdHoc,
		Status:      model.ReservationApproved,
		RoomID:      1,
		RequesterID: 7,
		StartAt:     time.Date(2026, 3, 3, 8, 0, 0, 0, time.UTC),
		EndAt:       time.Date(2026, 3, 3, 12, 0, 0, 0, time.UTC),
	}
}

func TestPickup(t *testing.T) {
	onTime := time.Date(2026, 3, 3, 8, 10, 0, 0, time.UTC)
	staffID := uint64(3)

	t.Run("desk pickup binds key and flips status", func(t *testing.T) {
		res := approvedReservation()
		tx := new(mockTx)
		tx.On("ReservationForUpdate", mock.Anything, uint64(10)).Return(res, nil).Once()
		tx.On("LoanByReservation", mock.Anything, uint64(10)).Return(nil, sql.ErrNoRows).Once()
		tx.On("AvailableKeyForUpdate", mock.Anything, uint64(1)).Return(&model.Key{ID: 42, RoomID: 1, Status: model.KeyAvailable}, nil).Once()
		tx.On("CreateLoan", mock.Anything, mock.MatchedBy(func(l *model.Loan) bool {
			return l.ReservationID == 10 && l.KeyID == 42 && l.BorrowerID == 7 && l.HandledBy != nil && *l.HandledBy == staffID
		})).Return(nil).Once()
		tx.On("UpdateKeyStatus", mock.Anything, uint64(42), model.KeyAvailable, model.KeyBorrowed).Return(true, nil).Once()
		tx.On("UpdateReservationStatus", mock.Anything, uint64(10), model.ReservationApproved, model.ReservationCheckedIn, (*uint64)(nil)).Return(true, nil).Once()
		tx.On("Commit").Return(nil).Once()

		svc := newCustodyService(newStoreWithTx(tx), onTime)
		loan, err := svc.Pickup(context.Background(), 10, 7, &staffID)
		assert.NoError(t, err)
		assert.Equal(t, uint64(42), loan.KeyID)
		tx.AssertExpectations(t)
	})

	t.Run("late pickup forfeits and commits the flip", func(t *testing.T) {
		res := approvedReservation()
		late := res.StartAt.Add(31 * time.Minute)
		tx := new(mockTx)
		tx.On("ReservationForUpdate", mock.Anything, uint64(10)).Return(res, nil).Once()
		tx.On("LoanByReservation", mock.Anything, uint64(10)).Return(nil, sql.ErrNoRows).Once()
		tx.On("UpdateReservationStatus", mock.Anything, uint64(10), model.ReservationApproved, model.ReservationNoShow, (*uint64)(nil)).Return(true, nil).Once()
		tx.On("Commit").Return(nil).Once()

		svc := newCustodyService(newStoreWithTx(tx), late)
		_, err := svc.Pickup(context.Background(), 10, 7, &staffID)
		assert.ErrorIs(t, err, ErrLateCheckinNoShow)
		tx.AssertExpectations(t)
		tx.AssertNotCalled(t, "Rollback")
	})

	t.Run("pickup at the grace boundary still allowed", func(t *testing.T) {
		res := approvedReservation()
		boundary := res.StartAt.Add(30 * time.Minute)
		tx := new(mockTx)
		tx.On("ReservationForUpdate", mock.Anything, uint64(10)).Return(res, nil).Once()
		tx.On("LoanByReservation", mock.Anything, uint64(10)).Return(nil, sql.ErrNoRows).Once()
		tx.On("AvailableKeyForUpdate", mock.Anything, uint64(1)).Return(&model.Key{ID: 42, RoomID: 1}, nil).Once()
		tx.On("CreateLoan", mock.Anything, mock.Anything).Return(nil).Once()
		tx.On("UpdateKeyStatus", mock.Anything, uint64(42), model.KeyAvailable, model.KeyBorrowed).Return(true, nil).Once()
		tx.On("UpdateReservationStatus", mock.Anything, uint64(10), model.ReservationApproved, model.ReservationCheckedIn, (*uint64)(nil)).Return(true, nil).Once()
		tx.On("Commit").Return(nil).Once()

		svc := newCustodyService(newStoreWithTx(tx), boundary)
		_, err := svc.Pickup(context.Background(), 10, 7, &staffID)
		assert.NoError(t, err)
	})

	t.Run("no available key", func(t *testing.T) {
		res := approvedReservation()
		tx := new(mockTx)
		tx.On("ReservationForUpdate", mock.Anything, uint64(10)).Return(res, nil).Once()
		tx.On("LoanByReservation", mock.Anything, uint64(10)).Return(nil, sql.ErrNoRows).Once()
		tx.On("AvailableKeyForUpdate", mock.Anything, uint64(1)).Return(nil, sql.ErrNoRows).Once()
		tx.On("Rollback").Return(nil).Once()

		svc := newCustodyService(newStoreWithTx(tx), onTime)
		_, err := svc.Pickup(context.Background(), 10, 7, &staffID)
		assert.ErrorIs(t, err, ErrNoAvailableKey)
		tx.AssertExpectations(t)
	})

	t.Run("second pickup fails", func(t *testing.T) {
		res := approvedReservation()
		res.Status = model.ReservationCheckedIn
		tx := new(mockTx)
		tx.On("ReservationForUpdate", mock.Anything, uint64(10)).Return(res, nil).Once()
		tx.On("Rollback").Return(nil).Once()

		svc := newCustodyService(newStoreWithTx(tx), onTime)
		_, err := svc.Pickup(context.Background(), 10, 7, &staffID)
		assert.ErrorIs(t, err, ErrAlreadyCheckedIn)
	})

	t.Run("pending reservation not eligible", func(t *testing.T) {
		res := approvedReservation()
		res.Status = model.ReservationPending
		tx := new(mockTx)
		tx.On("ReservationForUpdate", mock.Anything, uint64(10)).Return(res, nil).Once()
		tx.On("Rollback").Return(nil).Once()

		svc := newCustodyService(newStoreWithTx(tx), onTime)
		_, err := svc.Pickup(context.Background(), 10, 7, &staffID)
		assert.ErrorIs(t, err, ErrNotApproved)
	})

	t.Run("stranger not allowed on ad-hoc reservation", func(t *testing.T) {
		res := approvedReservation()
		tx := new(mockTx)
		tx.On("ReservationForUpdate", mock.Anything, uint64(10)).Return(res, nil).Once()
		tx.On("LoanByReservation", mock.Anything, uint64(10)).Return(nil, sql.ErrNoRows).Once()
		tx.On("IsParticipant", mock.Anything, uint64(10), uint64(99)).Return(false, nil).Once()
		tx.On("Rollback").Return(nil).Once()

		svc := newCustodyService(newStoreWithTx(tx), onTime)
		_, err := svc.Pickup(context.Background(), 10, 99, &staffID)
		assert.ErrorIs(t, err, ErrNotAllowed)
	})

	t.Run("enrollment gates class reservations", func(t *testing.T) {
		section := uint64(5)
		res := approvedReservation()
		res.Type = model.ReservationInClass
		res.SectionID = &section
		tx := new(mockTx)
		tx.On("ReservationForUpdate", mock.Anything, uint64(10)).Return(res, nil).Once()
		tx.On("LoanByReservation", mock.Anything, uint64(10)).Return(nil, sql.ErrNoRows).Once()
		tx.On("IsEnrolled", mock.Anything, section, uint64(99)).Return(false, nil).Once()
		tx.On("Rollback").Return(nil).Once()

		svc := newCustodyService(newStoreWithTx(tx), onTime)
		_, err := svc.Pickup(context.Background(), 10, 99, &staffID)
		assert.ErrorIs(t, err, ErrNotAllowed)
	})

	t.Run("missing reservation", func(t *testing.T) {
		tx := new(mockTx)
		tx.On("ReservationForUpdate", mock.Anything, uint64(404)).Return(nil, sql.ErrNoRows).Once()
		tx.On("Rollback").Return(nil).Once()

		svc := newCustodyService(newStoreWithTx(tx), onTime)
		_, err := svc.Pickup(context.Background(), 404, 7, &staffID)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestReturn(t *testing.T) {
	now := time.Date(2026, 3, 3, 11, 0, 0, 0, time.UTC)
	activeLoan := func() *model.Loan {
		return &model.Loan{ID: 20, ReservationID: 10, KeyID: 42, BorrowerID: 7, CheckedOutAt: now.Add(-2 * time.Hour)}
	}
	checkedIn := func() *model.Reservation {
		res := approvedReservation()
		res.Status = model.ReservationCheckedIn
		return res
	}

	t.Run("return closes loan and completes reservation", func(t *testing.T) {
		tx := new(mockTx)
		tx.On("ReservationForUpdate", mock.Anything, uint64(10)).Return(checkedIn(), nil).Once()
		tx.On("LoanByReservation", mock.Anything, uint64(10)).Return(activeLoan(), nil).Once()
		tx.On("CloseLoan", mock.Anything, uint64(20), uint64(7), now).Return(true, nil).Once()
		tx.On("UpdateKeyStatus", mock.Anything, uint64(42), model.KeyBorrowed, model.KeyAvailable).Return(true, nil).Once()
		tx.On("UpdateReservationStatus", mock.Anything, uint64(10), model.ReservationCheckedIn, model.ReservationCompleted, (*uint64)(nil)).Return(true, nil).Once()
		tx.On("Commit").Return(nil).Once()

		svc := newCustodyService(newStoreWithTx(tx), now)
		loan, err := svc.Return(context.Background(), 10, 7)
		assert.NoError(t, err)
		assert.NotNil(t, loan.CheckedInAt)
		assert.Equal(t, uint64(7), *loan.ReturnedBy)
		tx.AssertExpectations(t)
	})

	t.Run("participant may return", func(t *testing.T) {
		tx := new(mockTx)
		tx.On("ReservationForUpdate", mock.Anything, uint64(10)).Return(checkedIn(), nil).Once()
		tx.On("LoanByReservation", mock.Anything, uint64(10)).Return(activeLoan(), nil).Once()
		tx.On("IsParticipant", mock.Anything, uint64(10), uint64(8)).Return(true, nil).Once()
		tx.On("CloseLoan", mock.Anything, uint64(20), uint64(8), now).Return(true, nil).Once()
		tx.On("UpdateKeyStatus", mock.Anything, uint64(42), model.KeyBorrowed, model.KeyAvailable).Return(true, nil).Once()
		tx.On("UpdateReservationStatus", mock.Anything, uint64(10), model.ReservationCheckedIn, model.ReservationCompleted, (*uint64)(nil)).Return(true, nil).Once()
		tx.On("Commit").Return(nil).Once()

		svc := newCustodyService(newStoreWithTx(tx), now)
		_, err := svc.Return(context.Background(), 10, 8)
		assert.NoError(t, err)
	})

	t.Run("not checked in", func(t *testing.T) {
		tx := new(mockTx)
		tx.On("ReservationForUpdate", mock.Anything, uint64(10)).Return(approvedReservation(), nil).Once()
		tx.On("Rollback").Return(nil).Once()

		svc := newCustodyService(newStoreWithTx(tx), now)
		_, err := svc.Return(context.Background(), 10, 7)
		assert.ErrorIs(t, err, ErrNotCheckedIn)
	})

	t.Run("double return fails on missing loan", func(t *testing.T) {
		tx := new(mockTx)
		tx.On("ReservationForUpdate", mock.Anything, uint64(10)).Return(checkedIn(), nil).Once()
		tx.On("LoanByReservation", mock.Anything, uint64(10)).Return(nil, sql.ErrNoRows).Once()
		tx.On("Rollback").Return(nil).Once()

		svc := newCustodyService(newStoreWithTx(tx), now)
		_, err := svc.Return(context.Background(), 10, 7)
		assert.ErrorIs(t, err, ErrNoLoan)
	})
}

func TestIssuePickupToken(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	t.Run("staff issues hashed single-use secret for a borrower", func(t *testing.T) {
		// Reservation 10 belongs to user 7; staff member 3 mints for it.
		res := approvedReservation()
		var stored *model.AccessToken
		tx := new(mockTx)
		tx.On("ReservationForUpdate", mock.Anything, uint64(10)).Return(res, nil).Once()
		tx.On("VoidUnusedAccessTokens", mock.Anything, uint64(10), model.TokenPickup, now).Return(nil).Once()
		tx.On("InsertAccessToken", mock.Anything, mock.MatchedBy(func(t *model.AccessToken) bool {
			stored = t
			return t.Kind == model.TokenPickup && t.ReservationID == 10
		})).Return(nil).Once()
		tx.On("Commit").Return(nil).Once()

		svc := newCustodyService(newStoreWithTx(tx), now)
		raw, tok, err := svc.IssuePickupToken(context.Background(), 10, 3, model.RoleStaff)
		assert.NoError(t, err)
		assert.NotEmpty(t, raw)
		assert.Equal(t, token.HashSecret(raw), stored.TokenHash)
		assert.Equal(t, now.Add(24*time.Hour), tok.ExpiresAt)
		tx.AssertExpectations(t)
	})

	t.Run("admin may issue", func(t *testing.T) {
		tx := new(mockTx)
		tx.On("ReservationForUpdate", mock.Anything, uint64(10)).Return(approvedReservation(), nil).Once()
		tx.On("VoidUnusedAccessTokens", mock.Anything, uint64(10), model.TokenPickup, now).Return(nil).Once()
		tx.On("InsertAccessToken", mock.Anything, mock.Anything).Return(nil).Once()
		tx.On("Commit").Return(nil).Once()

		svc := newCustodyService(newStoreWithTx(tx), now)
		_, _, err := svc.IssuePickupToken(context.Background(), 10, 2, model.RoleAdmin)
		assert.NoError(t, err)
	})

	t.Run("students cannot self-mint", func(t *testing.T) {
		// Even the requester cannot mint their own secret; there is no
		// transaction to roll back because the gate fires first.
		tx := new(mockTx)
		svc := newCustodyService(newStoreWithTx(tx), now)
		_, _, err := svc.IssuePickupToken(context.Background(), 10, 7, model.RoleStudent)
		assert.ErrorIs(t, err, ErrNotAllowed)
		tx.AssertNotCalled(t, "ReservationForUpdate", mock.Anything, mock.Anything)
	})

	t.Run("approved reservations only", func(t *testing.T) {
		res := approvedReservation()
		res.Status = model.ReservationCompleted
		tx := new(mockTx)
		tx.On("ReservationForUpdate", mock.Anything, uint64(10)).Return(res, nil).Once()
		tx.On("Rollback").Return(nil).Once()

		svc := newCustodyService(newStoreWithTx(tx), now)
		_, _, err := svc.IssuePickupToken(context.Background(), 10, 3, model.RoleStaff)
		assert.ErrorIs(t, err, ErrNotApproved)
	})
}

func TestKioskFlow(t *testing.T) {
	onTime := time.Date(2026, 3, 3, 8, 10, 0, 0, time.UTC)
	rawSecret := "a0b1c2d3"

	t.Run("pickup consumes token and mints return secret", func(t *testing.T) {
		res := approvedReservation()
		consumed := &model.AccessToken{ID: 1, ReservationID: 10, Kind: model.TokenPickup}
		tx := new(mockTx)
		tx.On("ConsumeAccessToken", mock.Anything, token.HashSecret(rawSecret), model.TokenPickup, onTime).Return(consumed, nil).Once()
		tx.On("ReservationForUpdate", mock.Anything, uint64(10)).Return(res, nil).Twice()
		tx.On("LoanByReservation", mock.Anything, uint64(10)).Return(nil, sql.ErrNoRows).Once()
		tx.On("AvailableKeyForUpdate", mock.Anything, uint64(1)).Return(&model.Key{ID: 42, RoomID: 1}, nil).Once()
		tx.On("CreateLoan", mock.Anything, mock.MatchedBy(func(l *model.Loan) bool {
			// Kiosk loans resolve the borrower to the requester with no handler.
			return l.BorrowerID == 7 && l.HandledBy == nil
		})).Return(nil).Once()
		tx.On("UpdateKeyStatus", mock.Anything, uint64(42), model.KeyAvailable, model.KeyBorrowed).Return(true, nil).Once()
		tx.On("UpdateReservationStatus", mock.Anything, uint64(10), model.ReservationApproved, model.ReservationCheckedIn, (*uint64)(nil)).Return(true, nil).Once()
		tx.On("VoidUnusedAccessTokens", mock.Anything, uint64(10), model.TokenReturn, onTime).Return(nil).Once()
		tx.On("InsertAccessToken", mock.Anything, mock.MatchedBy(func(t *model.AccessToken) bool {
			return t.Kind == model.TokenReturn && t.ReservationID == 10
		})).Return(nil).Once()
		tx.On("Commit").Return(nil).Once()

		svc := newCustodyService(newStoreWithTx(tx), onTime)
		loan, returnSecret, err := svc.KioskPickup(context.Background(), rawSecret)
		assert.NoError(t, err)
		assert.Equal(t, uint64(7), loan.BorrowerID)
		assert.NotEmpty(t, returnSecret)
		assert.NotEqual(t, rawSecret, returnSecret)
		tx.AssertExpectations(t)
	})

	t.Run("replayed secret rejected", func(t *testing.T) {
		tx := new(mockTx)
		tx.On("ConsumeAccessToken", mock.Anything, token.HashSecret(rawSecret), model.TokenPickup, onTime).Return(nil, repository.ErrAlreadyUsed).Once()
		tx.On("Rollback").Return(nil).Once()

		svc := newCustodyService(newStoreWithTx(tx), onTime)
		_, _, err := svc.KioskPickup(context.Background(), rawSecret)
		assert.ErrorIs(t, err, repository.ErrAlreadyUsed)
	})

	t.Run("return closes out via token", func(t *testing.T) {
		res := approvedReservation()
		res.Status = model.ReservationCheckedIn
		consumed := &model.AccessToken{ID: 2, ReservationID: 10, Kind: model.TokenReturn}
		loan := &model.Loan{ID: 20, ReservationID: 10, KeyID: 42, BorrowerID: 7, CheckedOutAt: onTime.Add(-time.Hour)}
		tx := new(mockTx)
		tx.On("ConsumeAccessToken", mock.Anything, token.HashSecret(rawSecret), model.TokenReturn, onTime).Return(consumed, nil).Once()
		tx.On("ReservationForUpdate", mock.Anything, uint64(10)).Return(res, nil).Twice()
		tx.On("LoanByReservation", mock.Anything, uint64(10)).Return(loan, nil).Once()
		tx.On("CloseLoan", mock.Anything, uint64(20), uint64(7), onTime).Return(true, nil).Once()
		tx.On("UpdateKeyStatus", mock.Anything, uint64(42), model.KeyBorrowed, model.KeyAvailable).Return(true, nil).Once()
		tx.On("UpdateReservationStatus", mock.Anything, uint64(10), model.ReservationCheckedIn, model.ReservationCompleted, (*uint64)(nil)).Return(true, nil).Once()
		tx.On("Commit").Return(nil).Once()

		svc := newCustodyService(newStoreWithTx(tx), onTime)
		got, err := svc.KioskReturn(context.Background(), rawSecret)
		assert.NoError(t, err)
		assert.NotNil(t, got.CheckedInAt)
		tx.AssertExpectations(t)
	})

	t.Run("wrong kind rejected", func(t *testing.T) {
		tx := new(mockTx)
		tx.On("ConsumeAccessToken", mock.Anything, token.HashSecret(rawSecret), model.TokenReturn, onTime).Return(nil, repository.ErrWrongKind).Once()
		tx.On("Rollback").Return(nil).Once()

		svc := newCustodyService(newStoreWithTx(tx), onTime)
		_, err := svc.KioskReturn(context.Background(), rawSecret)
		assert.ErrorIs(t, err, repository.ErrWrongKind)
	})
}
