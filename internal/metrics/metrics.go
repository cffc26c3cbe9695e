// Package metrics exposes the Prometheus counters of the reservation
// and custody engines.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	reservationsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labkeys_reservations_created_total",
			Help: "Reservations created, labelled by initial status.",
		},
		[]string{"status"},
	)

	decisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labkeys_reservation_decisions_total",
			Help: "Staff decisions applied to pending reservations.",
		},
		[]string{"action"},
	)

	cancellations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "labkeys_reservations_cancelled_total",
			Help: "Reservations withdrawn by their requester.",
		},
	)

	slotConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "labkeys_slot_conflicts_total",
			Help: "Creation attempts lost to the (room, date, slot) unique key.",
		},
	)

	pickups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labkeys_key_pickups_total",
			Help: "Successful key pickups, labelled by channel (desk or kiosk).",
		},
		[]string{"channel"},
	)

	returns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labkeys_key_returns_total",
			Help: "Successful key returns, labelled by channel (desk or kiosk).",
		},
		[]string{"channel"},
	)

	noShows = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "labkeys_no_shows_total",
			Help: "Reservations forfeited to NO_SHOW by the sweeper or a late pickup.",
		},
	)
)

// Register installs the collectors into the default registry. Safe to
// call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			reservationsCreated,
			decisions,
			cancellations,
			slotConflicts,
			pickups,
			returns,
			noShows,
		)
	})
}

// IncReservationCreated counts a new reservation by its initial status.
func IncReservationCreated(status string) {
	reservationsCreated.WithLabelValues(status).Inc()
}

// IncDecision counts an applied APPROVE or REJECT.
func IncDecision(action string) {
	decisions.WithLabelValues(action).Inc()
}

// IncCancelled counts a requester cancellation.
func IncCancelled() {
	cancellations.Inc()
}

// IncSlotConflict counts a creation lost to the occupancy unique key.
func IncSlotConflict() {
	slotConflicts.Inc()
}

// IncPickup counts a completed key pickup on the given channel.
func IncPickup(channel string) {
	pickups.WithLabelValues(channel).Inc()
}

// IncReturn counts a completed key return on the given channel.
func IncReturn(channel string) {
	returns.WithLabelValues(channel).Inc()
}

// AddNoShows counts reservations forfeited to NO_SHOW.
func AddNoShows(n int64) {
	noShows.Add(float64(n))
}
