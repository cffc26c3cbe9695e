package model

import "time"

// Key statuses.  A key moves AVAILABLE→BORROWED only when it is bound
// into a new loan and BORROWED→AVAILABLE only when that loan closes.
// LOST and DAMAGED are administrative states that take a key out of
// circulation without deleting its history.
const (
	KeyAvailable = "AVAILABLE"
	KeyBorrowed  = "BORROWED"
	KeyLost      = "LOST"
	KeyDamaged   = "DAMAGED"
)

// Key is a physical key artifact belonging to one room.  The current
// design keeps one key per room, but the schema does not assume it:
// pickup simply selects any AVAILABLE key for the room.
//
// Fields:
//  ID        – primary key identifier.
//  RoomID    – room this key opens.
//  Label     – engraved label for the physical artifact.
//  Status    – AVAILABLE, BORROWED, LOST or DAMAGED.
//  CreatedAt – timestamp of creation.
//  UpdatedAt – timestamp of last update.
type Key struct {
	ID        uint64    // room_keys.id
	RoomID    uint64    // room_keys.room_id
	Label     string    // room_keys.label
	Status    string    // room_keys.status
	CreatedAt time.Time // room_keys.created_at
	UpdatedAt time.Time // room_keys.updated_at
}
