package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/lab-key-reservation/internal/model"
)

func TestCheckConsumable(t *testing.T) {
	now := time.Date(2026, 3, 3, 8, 10, 0, 0, time.UTC)

	liveToken := func(kind string) *model.AccessToken {
		return &model.AccessToken{
			ID:            1,
			ReservationID: 10,
			Kind:          kind,
			ExpiresAt:     now.Add(15 * time.Minute),
		}
	}

	t.Run("live token of the expected kind passes", func(t *testing.T) {
		assert.NoError(t, checkConsumable(liveToken(model.TokenPickup), model.TokenPickup, now))
		assert.NoError(t, checkConsumable(liveToken(model.TokenReturn), model.TokenReturn, now))
	})

	t.Run("wrong kind rejected", func(t *testing.T) {
		err := checkConsumable(liveToken(model.TokenReturn), model.TokenPickup, now)
		assert.ErrorIs(t, err, ErrWrongKind)
	})

	t.Run("consumed token cannot be redeemed again", func(t *testing.T) {
		tok := liveToken(model.TokenPickup)
		used := now.Add(-time.Minute)
		tok.UsedAt = &used
		err := checkConsumable(tok, model.TokenPickup, now)
		assert.ErrorIs(t, err, ErrAlreadyUsed)
	})

	t.Run("expired token rejected", func(t *testing.T) {
		tok := liveToken(model.TokenPickup)
		tok.ExpiresAt = now.Add(-time.Second)
		err := checkConsumable(tok, model.TokenPickup, now)
		assert.ErrorIs(t, err, ErrTokenExpired)
	})

	t.Run("valid through the exact expiry instant", func(t *testing.T) {
		tok := liveToken(model.TokenPickup)
		tok.ExpiresAt = now
		assert.NoError(t, checkConsumable(tok, model.TokenPickup, now))
	})

	t.Run("kind mismatch reported before used or expired", func(t *testing.T) {
		tok := liveToken(model.TokenReturn)
		used := now.Add(-time.Hour)
		tok.UsedAt = &used
		tok.ExpiresAt = now.Add(-time.Hour)
		err := checkConsumable(tok, model.TokenPickup, now)
		assert.ErrorIs(t, err, ErrWrongKind)
	})

	t.Run("used wins over expired", func(t *testing.T) {
		tok := liveToken(model.TokenPickup)
		used := now.Add(-time.Hour)
		tok.UsedAt = &used
		tok.ExpiresAt = now.Add(-time.Hour)
		err := checkConsumable(tok, model.TokenPickup, now)
		assert.ErrorIs(t, err, ErrAlreadyUsed)
	})
}
