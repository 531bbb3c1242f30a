package annotations

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floww-app/chatkit/internal/stats"
	"github.com/floww-app/chatkit/internal/testutil"
)

func newTestManager(t *testing.T, start time.Time) (*Manager, func(d time.Duration)) {
	t.Helper()

	m := NewManager(testutil.TestLogger(t), stats.Nop{})

	current := start
	m.now = func() time.Time { return current }

	return m, func(d time.Duration) { current = current.Add(d) }
}

func TestManager_pinLifecycle(t *testing.T) {
	base := time.Date(2026, 8, 27, 10, 0, 0, 0, time.UTC)

	t.Run("day pin expires after a day", func(t *testing.T) {
		m, advance := newTestManager(t, base)

		require.NoError(t, m.Pin("m1", KindMessage, PinDay))

		advance(23*time.Hour + 59*time.Minute)
		assert.True(t, m.Pinned("m1", KindMessage), "expected pin to survive until its expiry")

		advance(2 * time.Minute)
		assert.Equal(t, 1, m.Sweep(), "expected the sweep to remove the expired pin")
		assert.False(t, m.Pinned("m1", KindMessage))
	})

	t.Run("expired pin is hidden before the sweep", func(t *testing.T) {
		m, advance := newTestManager(t, base)

		require.NoError(t, m.Pin("m1", KindMessage, PinDay))
		advance(PinDay + time.Second)

		_, ok := m.Get("m1", KindMessage)
		assert.False(t, ok, "expected an expired pin to be invisible even before sweeping")
		assert.Empty(t, m.Pins(KindMessage))
	})

	t.Run("unpin before expiry", func(t *testing.T) {
		m, advance := newTestManager(t, base)

		require.NoError(t, m.Pin("c1", KindChat, PinWeek))
		m.Unpin("c1", KindChat)

		assert.False(t, m.Pinned("c1", KindChat))

		advance(PinWeek + time.Hour)
		assert.Zero(t, m.Sweep(), "expected nothing left for the sweep to remove")

		// Unpinning again is harmless.
		m.Unpin("c1", KindChat)
	})

	t.Run("re-pin replaces the expiry", func(t *testing.T) {
		m, advance := newTestManager(t, base)

		require.NoError(t, m.Pin("m1", KindMessage, PinDay))
		advance(23 * time.Hour)
		require.NoError(t, m.Pin("m1", KindMessage, PinMonth))

		advance(2 * time.Hour) // past the original day expiry
		ann, ok := m.Get("m1", KindMessage)
		require.True(t, ok, "expected the replacement pin to still be live")
		assert.Equal(t, base.Add(23*time.Hour).Add(PinMonth), ann.Expiry)
	})

	t.Run("invalid duration rejected", func(t *testing.T) {
		m, _ := newTestManager(t, base)

		assert.Error(t, m.Pin("m1", KindMessage, time.Hour))
		assert.Error(t, m.Pin("m1", KindMessage, 0))
		assert.False(t, m.Pinned("m1", KindMessage))
	})

	t.Run("kinds are independent", func(t *testing.T) {
		m, _ := newTestManager(t, base)

		require.NoError(t, m.Pin("x1", KindMessage, PinDay))
		require.NoError(t, m.Pin("x1", KindChat, PinWeek))

		m.Unpin("x1", KindMessage)

		assert.False(t, m.Pinned("x1", KindMessage))
		assert.True(t, m.Pinned("x1", KindChat), "expected chat pin to be unaffected by the message unpin")
	})
}

func TestManager_Sweep(t *testing.T) {
	base := time.Date(2026, 8, 27, 10, 0, 0, 0, time.UTC)
	m, advance := newTestManager(t, base)

	require.NoError(t, m.Pin("m1", KindMessage, PinDay))
	require.NoError(t, m.Pin("m2", KindMessage, PinWeek))
	require.NoError(t, m.Pin("c1", KindChat, PinMonth))

	advance(PinDay + time.Minute)
	assert.Equal(t, 1, m.Sweep())
	assert.Zero(t, m.Sweep(), "expected a repeat sweep to find nothing")

	pins := m.Pins(KindMessage)
	require.Len(t, pins, 1)
	assert.Equal(t, "m2", pins[0].TargetId)

	advance(PinMonth)
	assert.Equal(t, 2, m.Sweep())
	assert.Empty(t, m.Pins(KindMessage))
	assert.Empty(t, m.Pins(KindChat))
}

func TestManager_Sweep_reportsMetric(t *testing.T) {
	base := time.Date(2026, 8, 27, 10, 0, 0, 0, time.UTC)

	sp := &stats.MockStatsUpdater{}
	defer sp.AssertExpectations(t)
	sp.On("Incr", stats.AnnotationsSwept).Once()

	m := NewManager(testutil.TestLogger(t), sp)
	current := base
	m.now = func() time.Time { return current }

	require.NoError(t, m.Pin("m1", KindMessage, PinDay))
	current = current.Add(PinDay + time.Minute)

	assert.Equal(t, 1, m.Sweep())
	assert.Zero(t, m.Sweep(), "expected the empty sweep not to report the metric again")
}

func TestManager_favourites(t *testing.T) {
	base := time.Date(2026, 8, 27, 10, 0, 0, 0, time.UTC)
	m, advance := newTestManager(t, base)

	assert.True(t, m.ToggleFavourite("c1", KindChat), "expected first toggle to favourite")
	assert.True(t, m.IsFavourite("c1", KindChat))

	// Favourites never expire and are untouched by the sweep.
	advance(90 * 24 * time.Hour)
	m.Sweep()
	assert.True(t, m.IsFavourite("c1", KindChat))

	assert.False(t, m.ToggleFavourite("c1", KindChat), "expected second toggle to unfavourite")
	assert.False(t, m.IsFavourite("c1", KindChat))
}
