package booking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlotCapacity(t *testing.T) {
	cases := []struct {
		maxDaily, slots, want int
	}{
		{5, 3, 2},
		{6, 3, 2},
		{7, 3, 3},
		{1, 3, 1},
		{5, 1, 5},
		{4, 0, 2},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, slotCapacity(c.maxDaily, c.slots), "max=%d slots=%d", c.maxDaily, c.slots)
	}
}

func TestRulesDefaults(t *testing.T) {
	var r rules
	assert.Equal(t, DefaultMaxDailyBookings, r.maxDaily())
	assert.True(t, r.slotAllowed(SlotEvening))
	assert.False(t, r.slotAllowed("night"))

	zero, two := 0, 2
	r.MaxDaily = &zero
	assert.Equal(t, DefaultMaxDailyBookings, r.maxDaily())
	r.MaxDaily = &two
	assert.Equal(t, 2, r.maxDaily())

	r.AllowedSlots = []string{SlotMorning}
	assert.True(t, r.slotAllowed(SlotMorning))
	assert.False(t, r.slotAllowed(SlotEvening))
}

func TestDayBoundsUsesLocalCivilDay(t *testing.T) {
	ist, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	// 20:00 UTC on the 1st is 01:30 on the 2nd in IST.
	at := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	start, end := dayBounds(at, ist)
	assert.Equal(t, time.Date(2026, 3, 1, 18, 30, 0, 0, time.UTC), start.UTC())
	assert.Equal(t, 24*time.Hour, end.Sub(start))

	start, _ = dayBounds(at, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), start)
}

func TestTransitions(t *testing.T) {
	assert.True(t, CanTransition(StatusPending, StatusAccepted))
	assert.True(t, CanTransition(StatusAccepted, StatusCompleted))
	assert.True(t, CanTransition(StatusRescheduled, StatusAccepted))
	assert.False(t, CanTransition(StatusPending, StatusExpired), "expiry only via sweep")
	assert.False(t, CanTransition(StatusPending, StatusCompleted))
	assert.False(t, CanTransition(StatusCancelled, StatusAccepted))
	assert.False(t, CanTransition(StatusCompleted, StatusCancelled))

	assert.True(t, StatusRescheduled.Active())
	assert.False(t, StatusExpired.Active())
}
