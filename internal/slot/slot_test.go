package slot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestByID(t *testing.T) {
	s, err := ByID("S2")
	assert.NoError(t, err)
	assert.Equal(t, "13:00-17:00", s.Label)

	_, err = ByID("S9")
	assert.ErrorIs(t, err, ErrUnknownSlot)
}

func TestWindow(t *testing.T) {
	seoul, err := time.LoadLocation("Asia/Seoul")
	assert.NoError(t, err)

	t.Run("converts local slot to UTC instants", func(t *testing.T) {
		start, end, err := Window("2026-03-03", "S1", seoul)
		assert.NoError(t, err)
		// 08:00 KST is 23:00 UTC the previous day.
		assert.Equal(t, time.Date(2026, 3, 2, 23, 0, 0, 0, time.UTC), start)
		assert.Equal(t, time.Date(2026, 3, 3, 3, 0, 0, 0, time.UTC), end)
	})

	t.Run("end is always after start", func(t *testing.T) {
		for _, s := range Catalog {
			start, end, err := Window("2026-03-03", s.ID, time.UTC)
			assert.NoError(t, err)
			assert.True(t, end.After(start), s.ID)
		}
	})

	t.Run("bad inputs", func(t *testing.T) {
		_, _, err := Window("2026-03-03", "S9", time.UTC)
		assert.ErrorIs(t, err, ErrUnknownSlot)

		_, _, err = Window("03/03/2026", "S1", time.UTC)
		assert.ErrorIs(t, err, ErrBadDate)
	})
}

func TestDayOf(t *testing.T) {
	seoul, err := time.LoadLocation("Asia/Seoul")
	assert.NoError(t, err)

	// 23:00 UTC on Mar 2 is already Mar 3 in Seoul.
	instant := time.Date(2026, 3, 2, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, "2026-03-03", DayOf(instant, seoul))
	assert.Equal(t, "2026-03-02", DayOf(instant, time.UTC))
}
