// Package slot defines the fixed catalog of reservable time windows and
// the pure conversions between a (date, slot) pair and concrete start
// and end instants.  All slots are interpreted in a single reference
// timezone supplied by the caller; the returned instants are UTC.
package slot

import (
	"errors"
	"time"
)

// Slot describes one canonical time-of-day window a reservation can
// occupy.  StartHM and EndHM are minutes since midnight in the
// reference timezone.
type Slot struct {
	ID      string `json:"id"`    // stable slot label stored on reservations
	Label   string `json:"label"` // human readable "08:00–12:00"
	StartHM int    `json:"-"`     // minutes since midnight, start
	EndHM   int    `json:"-"`     // minutes since midnight, end
}

// Catalog is the fixed set of slots, ordered by start time.  The set is
// small and closed; rooms are reserved in whole slots only.
var Catalog = []Slot{
	{ID: "S1", Label: "08:00-12:00", StartHM: 8 * 60, EndHM: 12 * 60},
	{ID: "S2", Label: "13:00-17:00", StartHM: 13 * 60, EndHM: 17 * 60},
	{ID: "S3", Label: "18:00-22:00", StartHM: 18 * 60, EndHM: 22 * 60},
}

// ErrUnknownSlot is returned when a slot ID does not exist in the catalog.
var ErrUnknownSlot = errors.New("unknown slot")

// ErrBadDate is returned when a date string is not a valid "2006-01-02" day.
var ErrBadDate = errors.New("bad date")

// ByID looks a slot up by its stable label.
func ByID(id string) (Slot, error) {
	for _, s := range Catalog {
		if s.ID == id {
			return s, nil
		}
	}
	return Slot{}, ErrUnknownSlot
}

// Window converts a day bucket and slot ID into start and end instants.
// The date must be formatted "2006-01-02" and is interpreted in loc;
// the returned times are UTC.  End is always strictly after start for
// every slot in the catalog.
func Window(date string, slotID string, loc *time.Location) (start, end time.Time, err error) {
	s, err := ByID(slotID)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	day, err := time.ParseInLocation("2006-01-02", date, loc)
	if err != nil {
		return time.Time{}, time.Time{}, ErrBadDate
	}
	start = day.Add(time.Duration(s.StartHM) * time.Minute).UTC()
	end = day.Add(time.Duration(s.EndHM) * time.Minute).UTC()
	return start, end, nil
}

// DayOf returns the day bucket string for an instant in loc.  It is the
// inverse of the date half of Window and is used when generating class
// reservations over a term range.
func DayOf(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02")
}
