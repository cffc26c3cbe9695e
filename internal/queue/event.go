// Package queue defines message payloads exchanged over the message
// broker and the publisher/consumer plumbing around them.
package queue

// Queue names double as event types.
const (
	EventReservationCreated = "reservation.created"
	EventReservationDecided = "reservation.decided"
	EventKeyPickedUp        = "key.picked_up"
	EventKeyReturned        = "key.returned"
	EventNoShow             = "reservation.no_show"
)

// ReservationEvent is published on lifecycle transitions of a
// reservation. It carries enough for downstream consumers to log or
// notify without querying the primary database.
type ReservationEvent struct {
	ReservationID uint64 `json:"reservation_id"`
	RoomID        uint64 `json:"room_id"`
	RequesterID   uint64 `json:"requester_id,omitempty"`
	Status        string `json:"status,omitempty"`
	Date          string `json:"date,omitempty"`
	SlotID        string `json:"slot_id,omitempty"`
	OccurredAt    string `json:"occurred_at"`
}

// KeyCustodyEvent is published when a key changes hands.
type KeyCustodyEvent struct {
	ReservationID uint64 `json:"reservation_id"`
	KeyID         uint64 `json:"key_id"`
	UserID        uint64 `json:"user_id"`
	Channel       string `json:"channel"`
	OccurredAt    string `json:"occurred_at"`
}
