// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers and services to distinguish between different failure
// scenarios. For example, ErrForbidden indicates that the current user
// is not authorized to perform an operation on a resource owned by
// someone else, while ErrSlotConflict signals that a reservation for
// the same room, day and slot already exists.
package repository

import "errors"

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own. Handlers should translate this
// into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a delete or update cannot be
// performed because of conflicting state, such as attempting to
// delete a room that still has keys out on loan. Handlers should
// translate this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")

// ErrEmailExists is returned by UserRepo.Create when the email is
// already registered.
var ErrEmailExists = errors.New("email already exists")

// ErrSlotConflict is returned when inserting a reservation violates the
// (room_id, date, slot_id) unique key. It is detected from the MySQL
// duplicate-entry error so that concurrent creations race on the
// storage constraint instead of an application-level check.
var ErrSlotConflict = errors.New("slot already reserved")

// Access token consumption failures. Consume reports exactly which rule
// rejected the secret so that the kiosk can show an actionable message.
var (
	ErrTokenNotFound = errors.New("access token not found")
	ErrWrongKind     = errors.New("access token has wrong kind")
	ErrAlreadyUsed   = errors.New("access token already used")
	ErrTokenExpired  = errors.New("access token expired")
)
