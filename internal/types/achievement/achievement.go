package achievement

import "time"

// Rule names the counter an achievement threshold is compared against.
type Rule string

const (
	RulePosts          Rule = "posts"
	RuleStreak         Rule = "streak"
	RuleRevenueEntries Rule = "revenue_entries"
	RuleMilestones     Rule = "milestones"
	RuleSponsors       Rule = "sponsors"
)

type Definition struct {
	Key         string `json:"key" yaml:"key"`
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description" yaml:"description"`
	Rule        Rule   `json:"rule" yaml:"rule"`
	Threshold   int    `json:"threshold" yaml:"threshold"`
}

type Achievement struct {
	Definition
	Earned   bool       `json:"earned"`
	EarnedAt *time.Time `json:"earnedAt,omitempty"`
}

// Progress is the set of counters a user's achievements are evaluated against.
type Progress struct {
	Posts          int
	LongestStreak  int
	RevenueEntries int
	Milestones     int
	Sponsors       int
}

func (p Progress) Value(rule Rule) int {
	switch rule {
	case RulePosts:
		return p.Posts
	case RuleStreak:
		return p.LongestStreak
	case RuleRevenueEntries:
		return p.RevenueEntries
	case RuleMilestones:
		return p.Milestones
	case RuleSponsors:
		return p.Sponsors
	}
	return 0
}

func (d Definition) Met(p Progress) bool {
	return p.Value(d.Rule) >= d.Threshold
}
