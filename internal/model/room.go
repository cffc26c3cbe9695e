package model

import "time"

// Room represents a bookable lab room as stored in the `rooms` table.
// Rooms are maintained through the admin CRUD endpoints; the custody
// core only reads the IsActive flag and the set of keys per room.
//
// Fields:
//  ID        – primary key identifier.
//  Name      – human readable room name (e.g. "Lab 301").
//  Location  – building/floor description.
//  IsActive  – whether the room currently accepts reservations.
//  CreatedAt – timestamp of creation.
//  UpdatedAt – timestamp of last update.
type Room struct {
	ID        uint64    // rooms.id
	Name      string    // rooms.name
	Location  string    // rooms.location
	IsActive  bool      // rooms.is_active
	CreatedAt time.Time // rooms.created_at
	UpdatedAt time.Time // rooms.updated_at
}

// Section represents a course section whose scheduled meetings generate
// IN_CLASS reservations.  Enrollment membership is checked during the
// pickup/return authorization step.
//
// Fields:
//  ID         – primary key identifier.
//  CourseName – display name of the course.
//  Term       – term identifier (e.g. "2026-2").
//  CreatedAt  – timestamp of creation.
type Section struct {
	ID         uint64    // sections.id
	CourseName string    // sections.course_name
	Term       string    // sections.term
	CreatedAt  time.Time // sections.created_at
}
