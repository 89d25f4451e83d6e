package streak

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allKinds = []ActivityKind{ActivityPost, ActivityCommit, ActivityRevenue, ActivityAchievement}

func TestMark_FirstActivityActivatesDay(t *testing.T) {
	rec := &DailyStreakRecord{}

	assert.True(t, rec.Mark(ActivityPost))
	assert.True(t, rec.IsActiveDay)
	assert.True(t, rec.HasPosted)

	assert.False(t, rec.Mark(ActivityCommit), "already active day must not transition again")
	assert.False(t, rec.Mark(ActivityPost))
	assert.True(t, rec.HasCommitted)
}

func TestMark_ActiveIffAnyKindRecorded(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 500; i++ {
		rec := &DailyStreakRecord{}
		n := rng.Intn(8)
		transitions := 0
		for j := 0; j < n; j++ {
			if rec.Mark(allKinds[rng.Intn(len(allKinds))]) {
				transitions++
			}
		}

		assert.Equal(t, n > 0, rec.IsActiveDay)
		if n > 0 {
			assert.Equal(t, 1, transitions, "exactly one call activates the day")
		} else {
			assert.Zero(t, transitions)
		}
	}
}

func TestActivityKind(t *testing.T) {
	for _, k := range allKinds {
		parsed, err := ParseActivityKind(string(k))
		require.NoError(t, err)
		assert.Equal(t, k, parsed)
	}

	_, err := ParseActivityKind("tweet")
	assert.Error(t, err)
}

func TestDay(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	// 23:30 UTC on Jan 1 is already Jan 2 in Berlin.
	instant := time.Date(2026, 1, 1, 23, 30, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), Day(instant, time.UTC))
	assert.Equal(t, time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC), Day(instant, berlin))
	assert.Equal(t, Day(instant, time.UTC), Day(instant, nil))
}

func day(base time.Time, offset int) time.Time {
	return base.AddDate(0, 0, offset)
}

func TestCurrentStreak_GapStopsWalk(t *testing.T) {
	today := time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC)

	// T, T-1, T-2 active, T-3 missing, T-4 active.
	dates := []time.Time{day(today, 0), day(today, -1), day(today, -2), day(today, -4)}

	assert.Equal(t, 3, CurrentStreak(today, dates))
}

func TestCurrentStreak_EdgeCases(t *testing.T) {
	today := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	assert.Zero(t, CurrentStreak(today, nil))
	assert.Zero(t, CurrentStreak(today, []time.Time{day(today, -1), day(today, -2)}), "run not ending today counts zero")
	assert.Equal(t, 1, CurrentStreak(today, []time.Time{today}))

	// Crosses the end of February.
	dates := []time.Time{today, day(today, -1), day(today, -2)}
	assert.Equal(t, time.Date(2026, 2, 27, 0, 0, 0, 0, time.UTC), dates[2])
	assert.Equal(t, 3, CurrentStreak(today, dates))
}

func TestCurrentStreak_MatchesMaximalRun(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	today := time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 300; i++ {
		active := make([]bool, 40)
		for j := range active {
			active[j] = rng.Intn(4) != 0
		}

		var dates []time.Time
		for offset, on := range active {
			if on {
				dates = append(dates, day(today, -offset))
			}
		}

		want := 0
		for want < len(active) && active[want] {
			want++
		}

		assert.Equal(t, want, CurrentStreak(today, dates))
	}
}
