package service

import (
	"database/sql"
	"errors"
)

// Business outcome errors returned by the reservation and custody
// engines. All of these are expected results of racing or mistimed
// requests, not faults: handlers translate them into 4xx responses and
// they never roll back unrelated work. Genuine storage failures
// propagate as-is and are logged as internal errors.
var (
	// ErrNotFound means the referenced reservation does not exist.
	ErrNotFound = errors.New("reservation not found")

	// ErrAlreadyDecided means a decision was attempted on a
	// reservation that is no longer PENDING. Repeated decisions fail
	// rather than no-op so a double-approval race cannot silently
	// succeed twice.
	ErrAlreadyDecided = errors.New("reservation already decided")

	// ErrCannotCancelStatus means the reservation is past the point
	// where its requester may withdraw it.
	ErrCannotCancelStatus = errors.New("reservation can no longer be cancelled")

	// ErrCancelTooLate means the cancellation lead-time policy was
	// violated.
	ErrCancelTooLate = errors.New("cancellation window has closed")

	// ErrDateOutOfRange means the requested day is in the past or
	// beyond the advance booking horizon.
	ErrDateOutOfRange = errors.New("date out of range")

	// ErrRoomInactive means the room does not exist or does not accept
	// reservations.
	ErrRoomInactive = errors.New("room inactive")

	// ErrNotApproved means pickup was attempted against a reservation
	// that is not APPROVED.
	ErrNotApproved = errors.New("reservation not approved")

	// ErrAlreadyCheckedIn means a loan already exists for the
	// reservation.
	ErrAlreadyCheckedIn = errors.New("reservation already checked in")

	// ErrLateCheckinNoShow means the pickup window had elapsed; the
	// reservation was forfeited to NO_SHOW as a committed side effect
	// of the failed attempt.
	ErrLateCheckinNoShow = errors.New("pickup window elapsed, reservation forfeited")

	// ErrNotAllowed means the acting identity does not satisfy the
	// enrollment/participant/requester rule.
	ErrNotAllowed = errors.New("identity not allowed for this reservation")

	// ErrNoAvailableKey means every key for the room is borrowed, lost
	// or damaged. This is a retryable business outcome, not a fault.
	ErrNoAvailableKey = errors.New("no available key for room")

	// ErrNotCheckedIn means return was attempted against a reservation
	// that is not CHECKED_IN.
	ErrNotCheckedIn = errors.New("reservation not checked in")

	// ErrNoLoan means no custody record exists for the reservation.
	ErrNoLoan = errors.New("no loan for reservation")
)

// mapNoRows folds the storage-level miss into the business ErrNotFound.
func mapNoRows(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
