package model

import "time"

// Reservation statuses form a closed state machine.  A reservation is
// created PENDING (or APPROVED when the requester may self-approve),
// moves to APPROVED or REJECTED by a staff decision, to CANCELLED by
// its requester, to CHECKED_IN when a key is picked up against it, to
// COMPLETED when the key comes back, and to NO_SHOW when the pickup
// window elapses without a loan.  REJECTED, CANCELLED, NO_SHOW and
// COMPLETED are terminal.
const (
	ReservationPending   = "PENDING"
	ReservationApproved  = "APPROVED"
	ReservationRejected  = "REJECTED"
	ReservationCancelled = "CANCELLED"
	ReservationCheckedIn = "CHECKED_IN"
	ReservationCompleted = "COMPLETED"
	ReservationNoShow    = "NO_SHOW"
)

// Reservation types distinguish rows generated from the class timetable
// from one-off bookings made by individual users.
const (
	ReservationInClass = "IN_CLASS"
	ReservationAdHoc   = "AD_HOC"
)

// Reservation records a request or grant to occupy a room for one
// canonical slot on one day.  At most one reservation exists per
// (room, date, slot) tuple; the database enforces this with a unique
// key so two concurrent creations cannot both land.
//
// Fields:
//  ID          – primary key identifier.
//  Type        – IN_CLASS or AD_HOC.
//  Status      – current state machine status (see constants above).
//  RoomID      – room being occupied.
//  SectionID   – linked course section for IN_CLASS rows (nil for AD_HOC).
//  RequesterID – user who requested the reservation.
//  ApproverID  – user who approved or rejected it (nil while PENDING).
//  Date        – day bucket in the reservation timezone, "2006-01-02".
//  SlotID      – canonical slot label (see internal/slot).
//  StartAt     – occupancy start instant (UTC).
//  EndAt       – occupancy end instant (UTC); always after StartAt.
//  Note        – optional free-text note from the requester.
//  CreatedAt   – creation timestamp.
type Reservation struct {
	ID          uint64    // reservations.id
	Type        string    // reservations.type
	Status      string    // reservations.status
	RoomID      uint64    // reservations.room_id
	SectionID   *uint64   // reservations.section_id (nullable)
	RequesterID uint64    // reservations.requester_id
	ApproverID  *uint64   // reservations.approver_id (nullable)
	Date        string    // reservations.date (DATE column)
	SlotID      string    // reservations.slot_id
	StartAt     time.Time // reservations.start_at
	EndAt       time.Time // reservations.end_at
	Note        *string   // reservations.note (nullable)
	CreatedAt   time.Time // reservations.created_at
}

// Cancellable reports whether the requester may still withdraw a
// reservation in the given status.  Time policy is enforced separately.
func Cancellable(status string) bool {
	return status == ReservationPending || status == ReservationApproved
}
