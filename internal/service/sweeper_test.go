package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestSweep(t *testing.T) {
	now := time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC)
	cutoff := now.Add(-30 * time.Minute)

	t.Run("forfeits unclaimed reservations past the grace", func(t *testing.T) {
		tx := new(mockTx)
		tx.On("SweepNoShow", mock.Anything, cutoff).Return(int64(2), nil).Once()
		tx.On("Commit").Return(nil).Once()

		sw := NewSweeper(newStoreWithTx(tx), testPolicy(), time.Minute, zerolog.Nop())
		sw.Now = func() time.Time { return now }

		n, err := sw.Sweep(context.Background())
		assert.NoError(t, err)
		assert.Equal(t, int64(2), n)
		tx.AssertExpectations(t)
	})

	t.Run("second pass is a no-op", func(t *testing.T) {
		tx := new(mockTx)
		tx.On("SweepNoShow", mock.Anything, cutoff).Return(int64(0), nil).Once()
		tx.On("Commit").Return(nil).Once()

		sw := NewSweeper(newStoreWithTx(tx), testPolicy(), time.Minute, zerolog.Nop())
		sw.Now = func() time.Time { return now }

		n, err := sw.Sweep(context.Background())
		assert.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("run stops on context cancel", func(t *testing.T) {
		sw := NewSweeper(new(mockStore), testPolicy(), time.Hour, zerolog.Nop())
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		done := make(chan struct{})
		go func() {
			sw.Run(ctx)
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("Run did not stop after cancel")
		}
	})
}
