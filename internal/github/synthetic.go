package github

import (
	"hash/fnv"
	"math/rand"
	"strings"
	"time"
)

// Synthetic builds a deterministic stand-in calendar of SyntheticDays days
// ending on today. The same username always yields the same counts.
func Synthetic(username string, today time.Time) *Contributions {
	h := fnv.New64a()
	h.Write([]byte(strings.ToLower(username)))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	y, m, d := today.UTC().Date()
	last := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	first := last.AddDate(0, 0, -(SyntheticDays - 1))

	out := &Contributions{
		Username:  username,
		Days:      make([]Day, 0, SyntheticDays),
		Synthetic: true,
		FetchedAt: today,
	}

	for i := 0; i < SyntheticDays; i++ {
		count := 0
		// Roughly 40% of days are empty, like a typical part-time profile.
		if rng.Intn(10) >= 4 {
			count = 1 + rng.Intn(12)
		}
		out.Days = append(out.Days, Day{
			Date:  first.AddDate(0, 0, i).Format(DateLayout),
			Count: count,
		})
		out.TotalContributions += count
	}

	return out
}
