package service

import "time"

// Policy carries the custody time rules. The values were fixed
// constants in earlier iterations of this system; they are injected
// here so deployments can tune them without code changes.
type Policy struct {
	Location        *time.Location // reference timezone for slots and day buckets
	LatePickupGrace time.Duration  // pickup accepted until start_at + grace
	CancelLeadTime  time.Duration  // cancellation rejected after start_at - lead
	MaxAdvanceDays  int            // booking horizon in days
	PickupTokenTTL  time.Duration  // lifetime of minted PICKUP tokens
	ReturnTokenTTL  time.Duration  // lifetime of minted RETURN tokens
}
