package startup

import (
	"time"

	"buildInPublicAPI/internal/types/user"
)

type Stage string

const (
	StageIdea       Stage = "idea"
	StageBuilding   Stage = "building"
	StageLaunched   Stage = "launched"
	StageProfitable Stage = "profitable"
)

type Startup struct {
	ID          string        `json:"id"`
	OwnerID     string        `json:"ownerId"`
	Name        string        `json:"name"`
	Slug        string        `json:"slug"`
	Tagline     string        `json:"tagline,omitempty"`
	Description string        `json:"description,omitempty"`
	WebsiteURL  string        `json:"websiteUrl,omitempty"`
	LogoURL     string        `json:"logoUrl,omitempty"`
	Stage       Stage         `json:"stage"`
	Owner       *user.Summary `json:"owner,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

type Milestone struct {
	ID          string    `json:"id"`
	StartupID   string    `json:"startupId"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	AchievedAt  time.Time `json:"achievedAt"`
	CreatedAt   time.Time `json:"createdAt"`
}

// RevenueEntry stores amounts in minor currency units; Amount is the formatted major-unit value.
type RevenueEntry struct {
	ID          string    `json:"id"`
	StartupID   string    `json:"startupId"`
	UserID      string    `json:"userId"`
	AmountCents int64     `json:"amountCents"`
	Amount      string    `json:"amount"`
	Currency    string    `json:"currency"`
	Note        string    `json:"note,omitempty"`
	RecordedOn  time.Time `json:"recordedOn"`
	CreatedAt   time.Time `json:"createdAt"`
}

type RevenueSummary struct {
	Currency        string `json:"currency"`
	TotalCents      int64  `json:"totalCents"`
	Total           string `json:"total"`
	Last30DaysCents int64  `json:"last30DaysCents"`
	Last30Days      string `json:"last30Days"`
	Entries         int    `json:"entries"`
}

type Detail struct {
	Startup    *Startup       `json:"startup"`
	Milestones []*Milestone   `json:"milestones"`
	Revenue    RevenueSummary `json:"revenue"`
}
