package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/iliyamo/lab-key-reservation/internal/metrics"
)

// Sweeper forfeits unclaimed reservations. An APPROVED reservation
// whose pickup grace has elapsed with no loan on record flips to
// NO_SHOW; the transition is applied set-based in one statement, so
// overlapping sweep runs are harmless and the second run affects zero
// rows.
type Sweeper struct {
	store    Store
	policy   Policy
	interval time.Duration
	log      zerolog.Logger

	Now func() time.Time
}

// NewSweeper wires the no-show sweeper.
func NewSweeper(store Store, policy Policy, interval time.Duration, log zerolog.Logger) *Sweeper {
	return &Sweeper{
		store:    store,
		policy:   policy,
		interval: interval,
		log:      log,
		Now:      time.Now,
	}
}

// Sweep runs one pass and reports how many reservations it forfeited.
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return 0, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	cutoff := s.Now().UTC().Add(-s.policy.LatePickupGrace)
	n, err := tx.SweepNoShow(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	committed = true

	if n > 0 {
		metrics.AddNoShows(n)
		s.log.Info().Int64("swept", n).Time("cutoff", cutoff).Msg("no-show sweep")
	}
	return n, nil
}

// Run sweeps on the configured interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.log.Error().Err(err).Msg("no-show sweep failed")
			}
		}
	}
}
