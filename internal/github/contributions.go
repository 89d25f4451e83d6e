// Package github fetches a user's one-year contribution calendar from the
// GitHub GraphQL API and caches it in process.
package github

import "time"

const DateLayout = "2006-01-02"

// SyntheticDays is the length of a generated fallback calendar.
const SyntheticDays = 365

type Day struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type Contributions struct {
	Username           string    `json:"username"`
	TotalContributions int       `json:"totalContributions"`
	Days               []Day     `json:"contributions"`
	Synthetic          bool      `json:"synthetic"`
	FetchedAt          time.Time `json:"fetchedAt"`
}

// CountOn returns the contribution count for date (YYYY-MM-DD), or zero.
func (c *Contributions) CountOn(date string) int {
	for i := len(c.Days) - 1; i >= 0; i-- {
		if c.Days[i].Date == date {
			return c.Days[i].Count
		}
	}
	return 0
}

// CurrentStreak counts consecutive days with at least one contribution,
// ending at the last day of the calendar. A zero count on the last day does
// not break the streak since the day is still in progress.
func (c *Contributions) CurrentStreak() int {
	streak := 0
	for i := len(c.Days) - 1; i >= 0; i-- {
		if c.Days[i].Count > 0 {
			streak++
			continue
		}
		if i == len(c.Days)-1 {
			continue
		}
		break
	}
	return streak
}

func (c *Contributions) clone() *Contributions {
	cp := *c
	cp.Days = make([]Day, len(c.Days))
	copy(cp.Days, c.Days)
	return &cp
}

// Stats is the per-user summary persisted after a sync.
type Stats struct {
	GitHubUsername     string    `json:"githubUsername"`
	TotalContributions int       `json:"totalContributions"`
	CurrentStreak      int       `json:"currentStreak"`
	TodayCount         int       `json:"todayCount"`
	Synthetic          bool      `json:"synthetic"`
	SyncedAt           time.Time `json:"syncedAt"`
}
