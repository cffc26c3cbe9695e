// Package service implements the reservation lifecycle and the
// key-custody state machine. Each operation is a short-lived unit of
// work over one Store transaction; concurrent operations on the same
// reservation serialize on its row lock and the loser fails cleanly
// with a state-conflict error.
package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/iliyamo/lab-key-reservation/internal/metrics"
	"github.com/iliyamo/lab-key-reservation/internal/model"
	"github.com/iliyamo/lab-key-reservation/internal/queue"
	"github.com/iliyamo/lab-key-reservation/internal/repository"
	"github.com/iliyamo/lab-key-reservation/internal/slot"
)

// Decision actions accepted by Decide.
const (
	DecisionApprove = "APPROVE"
	DecisionReject  = "REJECT"
)

// ReservationService owns reservation creation, staff decisions,
// cancellation and class-timetable generation.
type ReservationService struct {
	store  Store
	events EventPublisher
	policy Policy
	log    zerolog.Logger

	// Now is the clock; tests pin it to exercise the time policies.
	Now func() time.Time
}

// NewReservationService wires the reservation engine.
func NewReservationService(store Store, events EventPublisher, policy Policy, log zerolog.Logger) *ReservationService {
	return &ReservationService{
		store:  store,
		events: events,
		policy: policy,
		log:    log,
		Now:    time.Now,
	}
}

// Create builds a reservation for one (room, date, slot) occupancy.
// Requesters with the auto-approval privilege get an APPROVED row with
// themselves recorded as approver; everyone else starts PENDING. The
// (room, date, slot) unique key decides races between concurrent
// creations; the loser receives repository.ErrSlotConflict.
func (s *ReservationService) Create(ctx context.Context, requester *model.User, roomID uint64, date, slotID string, note *string) (*model.Reservation, error) {
	startAt, endAt, err := slot.Window(date, slotID, s.policy.Location)
	if err != nil {
		return nil, err
	}
	now := s.Now().UTC()
	if !endAt.After(now) {
		return nil, ErrDateOutOfRange
	}
	if startAt.After(now.AddDate(0, 0, s.policy.MaxAdvanceDays)) {
		return nil, ErrDateOutOfRange
	}

	res := &model.Reservation{
		Type:        model.ReservationAdHoc,
		Status:      model.ReservationPending,
		RoomID:      roomID,
		RequesterID: requester.ID,
		Date:        date,
		SlotID:      slotID,
		StartAt:     startAt,
		EndAt:       endAt,
		Note:        note,
	}
	if requester.CanAutoApprove() {
		res.Status = model.ReservationApproved
		approver := requester.ID
		res.ApproverID = &approver
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	active, err := tx.RoomActive(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !active {
		return nil, ErrRoomInactive
	}
	if err := tx.CreateReservation(ctx, res); err != nil {
		if err == repository.ErrSlotConflict {
			metrics.IncSlotConflict()
		}
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true

	metrics.IncReservationCreated(res.Status)
	s.publish(queue.EventReservationCreated, queue.ReservationEvent{
		ReservationID: res.ID,
		RoomID:        roomID,
		RequesterID:   requester.ID,
		Status:        res.Status,
		Date:          date,
		SlotID:        slotID,
		OccurredAt:    now.Format(time.RFC3339),
	})
	s.log.Info().
		Uint64("reservation_id", res.ID).
		Uint64("room_id", roomID).
		Str("date", date).
		Str("slot", slotID).
		Str("status", res.Status).
		Msg("reservation created")
	return res, nil
}

// Decide applies a staff APPROVE or REJECT to a PENDING reservation.
// The operation is deliberately not idempotent: once a reservation has
// left PENDING, every further decision fails with ErrAlreadyDecided so
// a double-approval race cannot silently succeed twice.
func (s *ReservationService) Decide(ctx context.Context, reservationID uint64, decider *model.User, action string) (*model.Reservation, error) {
	var target string
	switch action {
	case DecisionApprove:
		target = model.ReservationApproved
	case DecisionReject:
		target = model.ReservationRejected
	default:
		return nil, ErrNotAllowed
	}
	if !decider.CanAutoApprove() {
		return nil, ErrNotAllowed
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ReservationForUpdate(ctx, reservationID)
	if err != nil {
		return nil, mapNoRows(err)
	}
	if res.Status != model.ReservationPending {
		return nil, ErrAlreadyDecided
	}
	approver := decider.ID
	ok, err := tx.UpdateReservationStatus(ctx, reservationID, model.ReservationPending, target, &approver)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAlreadyDecided
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true

	res.Status = target
	res.ApproverID = &approver
	metrics.IncDecision(action)
	s.publish(queue.EventReservationDecided, queue.ReservationEvent{
		ReservationID: reservationID,
		RoomID:        res.RoomID,
		RequesterID:   res.RequesterID,
		Status:        target,
		Date:          res.Date,
		SlotID:        res.SlotID,
		OccurredAt:    s.Now().UTC().Format(time.RFC3339),
	})
	s.log.Info().
		Uint64("reservation_id", reservationID).
		Uint64("decider_id", decider.ID).
		Str("action", action).
		Msg("reservation decided")
	return res, nil
}

// Cancel withdraws a PENDING or APPROVED reservation. Only the
// original requester may cancel, and only while the lead-time window is
// open: a cancellation after start_at - lead fails with
// ErrCancelTooLate.
func (s *ReservationService) Cancel(ctx context.Context, reservationID, requesterID uint64) error {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ReservationForUpdate(ctx, reservationID)
	if err != nil {
		return mapNoRows(err)
	}
	if res.RequesterID != requesterID {
		return ErrNotAllowed
	}
	if !model.Cancellable(res.Status) {
		return ErrCannotCancelStatus
	}
	if s.Now().UTC().After(res.StartAt.Add(-s.policy.CancelLeadTime)) {
		return ErrCancelTooLate
	}
	ok, err := tx.UpdateReservationStatus(ctx, reservationID, res.Status, model.ReservationCancelled, nil)
	if err != nil {
		return err
	}
	if !ok {
		return ErrCannotCancelStatus
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true

	metrics.IncCancelled()
	s.log.Info().
		Uint64("reservation_id", reservationID).
		Uint64("requester_id", requesterID).
		Msg("reservation cancelled")
	return nil
}

// GenerateClass creates one APPROVED IN_CLASS reservation per weekly
// meeting of a section over a term date range. Meetings whose slot is
// already taken are skipped, not treated as failures; the caller gets
// both counts back.
func (s *ReservationService) GenerateClass(ctx context.Context, approver *model.User, sectionID, roomID uint64, slotID string, weekday time.Weekday, termStart, termEnd string) (created, skipped int, err error) {
	if !approver.CanAutoApprove() {
		return 0, 0, ErrNotAllowed
	}
	first, err := time.ParseInLocation("2006-01-02", termStart, s.policy.Location)
	if err != nil {
		return 0, 0, slot.ErrBadDate
	}
	last, err := time.ParseInLocation("2006-01-02", termEnd, s.policy.Location)
	if err != nil {
		return 0, 0, slot.ErrBadDate
	}
	if last.Before(first) {
		return 0, 0, ErrDateOutOfRange
	}

	approverID := approver.ID
	section := sectionID
	meetings := make([]*model.Reservation, 0)
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		if day.Weekday() != weekday {
			continue
		}
		date := slot.DayOf(day, s.policy.Location)
		startAt, endAt, err := slot.Window(date, slotID, s.policy.Location)
		if err != nil {
			return 0, 0, err
		}
		meetings = append(meetings, &model.Reservation{
			Type:        model.ReservationInClass,
			Status:      model.ReservationApproved,
			RoomID:      roomID,
			SectionID:   &section,
			RequesterID: approver.ID,
			ApproverID:  &approverID,
			Date:        date,
			SlotID:      slotID,
			StartAt:     startAt,
			EndAt:       endAt,
		})
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return 0, 0, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	created, skipped, err = tx.BulkCreateClass(ctx, meetings)
	if err != nil {
		return 0, 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, 0, err
	}
	committed = true

	s.log.Info().
		Uint64("section_id", sectionID).
		Int("created", created).
		Int("skipped", skipped).
		Msg("class reservations generated")
	return created, skipped, nil
}

// ClearClass bulk-deletes the not-yet-attended class-generated rows of
// a section: future APPROVED reservations with no loan. This is the
// only operation that physically removes reservations.
func (s *ReservationService) ClearClass(ctx context.Context, approver *model.User, sectionID uint64) (int64, error) {
	if !approver.CanAutoApprove() {
		return 0, ErrNotAllowed
	}
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return 0, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	n, err := tx.DeleteUnattendedClass(ctx, sectionID, s.Now().UTC())
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	committed = true

	s.log.Info().Uint64("section_id", sectionID).Int64("deleted", n).Msg("class reservations cleared")
	return n, nil
}

func (s *ReservationService) publish(eventType string, payload interface{}) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishJSON(eventType, payload); err != nil {
		s.log.Warn().Err(err).Str("event", eventType).Msg("event publish failed")
	}
}
