package model

import "time"

// Loan is the custody record binding one reservation to one physical
// key for one occupancy.  A loan exists if and only if the reservation
// has passed pickup; CheckedInAt is null while custody is active and is
// set exactly once on return.  The unique key on reservation_id keeps
// concurrent pickups from double-creating a loan.
//
// Fields:
//  ID            – primary key identifier.
//  ReservationID – owning reservation (unique, one loan per reservation).
//  KeyID         – key in custody.
//  BorrowerID    – identity resolved at pickup time; may differ from the
//                  original requester.
//  HandledBy     – staff user who mediated the pickup; nil for loans
//                  created through the kiosk channel.
//  CheckedOutAt  – pickup timestamp.
//  CheckedInAt   – return timestamp (nil while custody is active).
//  ReturnedBy    – identity that performed the return (nil until then).
type Loan struct {
	ID            uint64     // loans.id
	ReservationID uint64     // loans.reservation_id
	KeyID         uint64     // loans.key_id
	BorrowerID    uint64     // loans.borrower_id
	HandledBy     *uint64    // loans.handled_by (nullable)
	CheckedOutAt  time.Time  // loans.checked_out_at
	CheckedInAt   *time.Time // loans.checked_in_at (nullable)
	ReturnedBy    *uint64    // loans.returned_by (nullable)
}

// Active reports whether the key is still out under this loan.
func (l *Loan) Active() bool { return l.CheckedInAt == nil }
