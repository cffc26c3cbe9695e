package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/iliyamo/lab-key-reservation/internal/model"
	"github.com/iliyamo/lab-key-reservation/internal/repository"
)

func testPolicy() Policy {
	return Policy{
		Location:        time.UTC,
		LatePickupGrace: 30 * time.Minute,
		CancelLeadTime:  60 * time.Minute,
		MaxAdvanceDays:  30,
		PickupTokenTTL:  24 * time.Hour,
		ReturnTokenTTL:  24 * time.Hour,
	}
}

func newReservationService(store Store, now time.Time) *ReservationService {
	svc := NewReservationService(store, nil, testPolicy(), zerolog.Nop())
	svc.Now = func() time.Time { return now }
	return svc
}

func TestCreateReservation(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	student := &model.User{ID: 7, Role: model.RoleStudent}
	staff := &model.User{ID: 3, Role: model.RoleStaff}

	t.Run("student starts pending", func(t *testing.T) {
		tx := new(mockTx)
		tx.On("RoomActive", mock.Anything, uint64(1)).Return(true, nil).Once()
		tx.On("CreateReservation", mock.Anything, mock.MatchedBy(func(r *model.Reservation) bool {
			return r.Status == model.ReservationPending && r.Type == model.ReservationAdHoc && r.ApproverID == nil
		})).Return(nil).Once()
		tx.On("Commit").Return(nil).Once()

		svc := newReservationService(newStoreWithTx(tx), now)
		res, err := svc.Create(context.Background(), student, 1, "2026-03-03", "S2", nil)
		assert.NoError(t, err)
		assert.Equal(t, model.ReservationPending, res.Status)
		assert.Equal(t, uint64(7), res.RequesterID)
		tx.AssertExpectations(t)
	})

	t.Run("staff auto approves", func(t *testing.T) {
		tx := new(mockTx)
		tx.On("RoomActive", mock.Anything, uint64(1)).Return(true, nil).Once()
		tx.On("CreateReservation", mock.Anything, mock.MatchedBy(func(r *model.Reservation) bool {
			return r.Status == model.ReservationApproved && r.ApproverID != nil && *r.ApproverID == staff.ID
		})).Return(nil).Once()
		tx.On("Commit").Return(nil).Once()

		svc := newReservationService(newStoreWithTx(tx), now)
		res, err := svc.Create(context.Background(), staff, 1, "2026-03-03", "S1", nil)
		assert.NoError(t, err)
		assert.Equal(t, model.ReservationApproved, res.Status)
		tx.AssertExpectations(t)
	})

	t.Run("past slot rejected", func(t *testing.T) {
		svc := newReservationService(new(mockStore), now)
		_, err := svc.Create(context.Background(), student, 1, "2026-03-01", "S1", nil)
		assert.ErrorIs(t, err, ErrDateOutOfRange)
	})

	t.Run("today's elapsed slot rejected but later slot allowed", func(t *testing.T) {
		// now is 09:00; S1 ends at 12:00 and is still bookable.
		tx := new(mockTx)
		tx.On("RoomActive", mock.Anything, uint64(1)).Return(true, nil).Once()
		tx.On("CreateReservation", mock.Anything, mock.Anything).Return(nil).Once()
		tx.On("Commit").Return(nil).Once()

		svc := newReservationService(newStoreWithTx(tx), now)
		_, err := svc.Create(context.Background(), student, 1, "2026-03-02", "S1", nil)
		assert.NoError(t, err)

		lateNow := time.Date(2026, 3, 2, 22, 30, 0, 0, time.UTC)
		svc2 := newReservationService(new(mockStore), lateNow)
		_, err = svc2.Create(context.Background(), student, 1, "2026-03-02", "S3", nil)
		assert.ErrorIs(t, err, ErrDateOutOfRange)
	})

	t.Run("beyond advance horizon rejected", func(t *testing.T) {
		svc := newReservationService(new(mockStore), now)
		_, err := svc.Create(context.Background(), student, 1, "2026-04-15", "S1", nil)
		assert.ErrorIs(t, err, ErrDateOutOfRange)
	})

	t.Run("inactive room rejected", func(t *testing.T) {
		tx := new(mockTx)
		tx.On("RoomActive", mock.Anything, uint64(2)).Return(false, nil).Once()
		tx.On("Rollback").Return(nil).Once()

		svc := newReservationService(newStoreWithTx(tx), now)
		_, err := svc.Create(context.Background(), student, 2, "2026-03-03", "S1", nil)
		assert.ErrorIs(t, err, ErrRoomInactive)
		tx.AssertExpectations(t)
	})

	t.Run("slot conflict surfaces", func(t *testing.T) {
		tx := new(mockTx)
		tx.On("RoomActive", mock.Anything, uint64(1)).Return(true, nil).Once()
		tx.On("CreateReservation", mock.Anything, mock.Anything).Return(repository.ErrSlotConflict).Once()
		tx.On("Rollback").Return(nil).Once()

		svc := newReservationService(newStoreWithTx(tx), now)
		_, err := svc.Create(context.Background(), student, 1, "2026-03-03", "S1", nil)
		assert.ErrorIs(t, err, repository.ErrSlotConflict)
		tx.AssertExpectations(t)
	})

	t.Run("unknown slot rejected", func(t *testing.T) {
		svc := newReservationService(new(mockStore), now)
		_, err := svc.Create(context.Background(), student, 1, "2026-03-03", "S9", nil)
		assert.Error(t, err)
	})
}

func TestDecide(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	staff := &model.User{ID: 3, Role: model.RoleStaff}
	student := &model.User{ID: 7, Role: model.RoleStudent}
	pending := &model.Reservation{ID: 10, Status: model.ReservationPending, RoomID: 1, RequesterID: 7}

	t.Run("approve", func(t *testing.T) {
		tx := new(mockTx)
		tx.On("ReservationForUpdate", mock.Anything, uint64(10)).Return(pending, nil).Once()
		tx.On("UpdateReservationStatus", mock.Anything, uint64(10), model.ReservationPending, model.ReservationApproved, &staff.ID).Return(true, nil).Once()
		tx.On("Commit").Return(nil).Once()

		svc := newReservationService(newStoreWithTx(tx), now)
		res, err := svc.Decide(context.Background(), 10, staff, DecisionApprove)
		assert.NoError(t, err)
		assert.Equal(t, model.ReservationApproved, res.Status)
		tx.AssertExpectations(t)
	})

	t.Run("second decision fails", func(t *testing.T) {
		decided := &model.Reservation{ID: 10, Status: model.ReservationApproved}
		tx := new(mockTx)
		tx.On("ReservationForUpdate", mock.Anything, uint64(10)).Return(decided, nil).Once()
		tx.On("Rollback").Return(nil).Once()

		svc := newReservationService(newStoreWithTx(tx), now)
		_, err := svc.Decide(context.Background(), 10, staff, DecisionReject)
		assert.ErrorIs(t, err, ErrAlreadyDecided)
		tx.AssertExpectations(t)
	})

	t.Run("student cannot decide", func(t *testing.T) {
		svc := newReservationService(new(mockStore), now)
		_, err := svc.Decide(context.Background(), 10, student, DecisionApprove)
		assert.ErrorIs(t, err, ErrNotAllowed)
	})

	t.Run("unknown action", func(t *testing.T) {
		svc := newReservationService(new(mockStore), now)
		_, err := svc.Decide(context.Background(), 10, staff, "MAYBE")
		assert.ErrorIs(t, err, ErrNotAllowed)
	})
}

func TestCancel(t *testing.T) {
	startAt := time.Date(2026, 3, 3, 8, 0, 0, 0, time.UTC)
	res := func() *model.Reservation {
		return &model.Reservation{ID: 10, Status: model.ReservationApproved, RequesterID: 7, StartAt: startAt}
	}

	t.Run("within lead time", func(t *testing.T) {
		tx := new(mockTx)
		tx.On("ReservationForUpdate", mock.Anything, uint64(10)).Return(res(), nil).Once()
		tx.On("UpdateReservationStatus", mock.Anything, uint64(10), model.ReservationApproved, model.ReservationCancelled, (*uint64)(nil)).Return(true, nil).Once()
		tx.On("Commit").Return(nil).Once()

		svc := newReservationService(newStoreWithTx(tx), startAt.Add(-2*time.Hour))
		assert.NoError(t, svc.Cancel(context.Background(), 10, 7))
		tx.AssertExpectations(t)
	})

	t.Run("exactly at the deadline still allowed", func(t *testing.T) {
		tx := new(mockTx)
		tx.On("ReservationForUpdate", mock.Anything, uint64(10)).Return(res(), nil).Once()
		tx.On("UpdateReservationStatus", mock.Anything, uint64(10), model.ReservationApproved, model.ReservationCancelled, (*uint64)(nil)).Return(true, nil).Once()
		tx.On("Commit").Return(nil).Once()

		svc := newReservationService(newStoreWithTx(tx), startAt.Add(-60*time.Minute))
		assert.NoError(t, svc.Cancel(context.Background(), 10, 7))
	})

	t.Run("past the deadline rejected", func(t *testing.T) {
		tx := new(mockTx)
		tx.On("ReservationForUpdate", mock.Anything, uint64(10)).Return(res(), nil).Once()
		tx.On("Rollback").Return(nil).Once()

		svc := newReservationService(newStoreWithTx(tx), startAt.Add(-59*time.Minute))
		err := svc.Cancel(context.Background(), 10, 7)
		assert.ErrorIs(t, err, ErrCancelTooLate)
	})

	t.Run("only the requester may cancel", func(t *testing.T) {
		tx := new(mockTx)
		tx.On("ReservationForUpdate", mock.Anything, uint64(10)).Return(res(), nil).Once()
		tx.On("Rollback").Return(nil).Once()

		svc := newReservationService(newStoreWithTx(tx), startAt.Add(-2*time.Hour))
		err := svc.Cancel(context.Background(), 10, 99)
		assert.ErrorIs(t, err, ErrNotAllowed)
	})

	t.Run("checked in cannot be cancelled", func(t *testing.T) {
		active := &model.Reservation{ID: 10, Status: model.ReservationCheckedIn, RequesterID: 7, StartAt: startAt}
		tx := new(mockTx)
		tx.On("ReservationForUpdate", mock.Anything, uint64(10)).Return(active, nil).Once()
		tx.On("Rollback").Return(nil).Once()

		svc := newReservationService(newStoreWithTx(tx), startAt.Add(-2*time.Hour))
		err := svc.Cancel(context.Background(), 10, 7)
		assert.ErrorIs(t, err, ErrCannotCancelStatus)
	})
}

func TestGenerateClass(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	admin := &model.User{ID: 1, Role: model.RoleAdmin}

	t.Run("one meeting per matching weekday", func(t *testing.T) {
		tx := new(mockTx)
		tx.On("BulkCreateClass", mock.Anything, mock.MatchedBy(func(ms []*model.Reservation) bool {
			if len(ms) != 3 {
				return false
			}
			for _, m := range ms {
				if m.Type != model.ReservationInClass || m.Status != model.ReservationApproved || m.SectionID == nil {
					return false
				}
			}
			// Mondays of 2026-03-02 .. 2026-03-20.
			return ms[0].Date == "2026-03-02" && ms[1].Date == "2026-03-09" && ms[2].Date == "2026-03-16"
		})).Return(3, 0, nil).Once()
		tx.On("Commit").Return(nil).Once()

		svc := newReservationService(newStoreWithTx(tx), now)
		created, skipped, err := svc.GenerateClass(context.Background(), admin, 5, 1, "S1", time.Monday, "2026-03-02", "2026-03-20")
		assert.NoError(t, err)
		assert.Equal(t, 3, created)
		assert.Equal(t, 0, skipped)
		tx.AssertExpectations(t)
	})

	t.Run("student forbidden", func(t *testing.T) {
		svc := newReservationService(new(mockStore), now)
		_, _, err := svc.GenerateClass(context.Background(), &model.User{ID: 7, Role: model.RoleStudent}, 5, 1, "S1", time.Monday, "2026-03-02", "2026-03-20")
		assert.ErrorIs(t, err, ErrNotAllowed)
	})

	t.Run("inverted range rejected", func(t *testing.T) {
		svc := newReservationService(new(mockStore), now)
		_, _, err := svc.GenerateClass(context.Background(), admin, 5, 1, "S1", time.Monday, "2026-03-20", "2026-03-02")
		assert.ErrorIs(t, err, ErrDateOutOfRange)
	})
}
