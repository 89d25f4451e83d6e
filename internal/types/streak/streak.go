package streak

import (
	"fmt"
	"time"
)

// MaxRecomputeDays bounds how many active days a recomputation reads.
const MaxRecomputeDays = 365

type ActivityKind string

const (
	ActivityPost        ActivityKind = "post"
	ActivityCommit      ActivityKind = "commit"
	ActivityRevenue     ActivityKind = "revenue"
	ActivityAchievement ActivityKind = "achievement"
)

func (k ActivityKind) Valid() bool {
	switch k {
	case ActivityPost, ActivityCommit, ActivityRevenue, ActivityAchievement:
		return true
	}
	return false
}

func ParseActivityKind(s string) (ActivityKind, error) {
	k := ActivityKind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown activity kind %q", s)
	}
	return k, nil
}

// DailyStreakRecord is one row per (user, calendar day).
type DailyStreakRecord struct {
	ID             string    `json:"id"`
	UserID         string    `json:"userId"`
	Date           time.Time `json:"date"`
	HasPosted      bool      `json:"hasPosted"`
	HasCommitted   bool      `json:"hasCommitted"`
	HasRevenue     bool      `json:"hasRevenue"`
	HasAchievement bool      `json:"hasAchievement"`
	IsActiveDay    bool      `json:"isActiveDay"`
}

// Mark sets the flag for kind, recomputes IsActiveDay and reports whether
// this call moved the day from inactive to active.
func (r *DailyStreakRecord) Mark(kind ActivityKind) bool {
	wasActive := r.IsActiveDay

	switch kind {
	case ActivityPost:
		r.HasPosted = true
	case ActivityCommit:
		r.HasCommitted = true
	case ActivityRevenue:
		r.HasRevenue = true
	case ActivityAchievement:
		r.HasAchievement = true
	}

	r.IsActiveDay = r.HasPosted || r.HasCommitted || r.HasRevenue || r.HasAchievement
	return r.IsActiveDay && !wasActive
}

type Streak struct {
	UserID           string     `json:"userId"`
	CurrentStreak    int        `json:"currentStreak"`
	LongestStreak    int        `json:"longestStreak"`
	LastActivityDate *time.Time `json:"lastActivityDate,omitempty"`
}

type ActivityResult struct {
	Record       DailyStreakRecord `json:"record"`
	BecameActive bool              `json:"becameActive"`
	Streak       *Streak           `json:"streak,omitempty"`
}

type CalendarDay struct {
	Date        string `json:"date"`
	Active      bool   `json:"active"`
	Posted      bool   `json:"posted"`
	Committed   bool   `json:"committed"`
	Revenue     bool   `json:"revenue"`
	Achievement bool   `json:"achievement"`
}

// Day normalizes t to the calendar date it falls on in loc. The result is
// midnight UTC of that date so it round-trips through a DATE column unchanged.
func Day(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// CurrentStreak counts consecutive days ending at today. activeDates must be
// ordered newest first; the walk stops at the first date that is not the
// expected one.
func CurrentStreak(today time.Time, activeDates []time.Time) int {
	expected := Day(today, time.UTC)
	count := 0
	for _, d := range activeDates {
		if !Day(d, time.UTC).Equal(expected) {
			break
		}
		count++
		expected = expected.AddDate(0, 0, -1)
	}
	return count
}
