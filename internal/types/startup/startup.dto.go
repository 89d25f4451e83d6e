package startup

import "time"

type CreateStartupRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=80"`
	Tagline     string `json:"tagline,omitempty" validate:"max=140"`
	Description string `json:"description,omitempty" validate:"max=2000"`
	WebsiteURL  string `json:"websiteUrl,omitempty" validate:"omitempty,url"`
	LogoURL     string `json:"logoUrl,omitempty" validate:"omitempty,url"`
	Stage       Stage  `json:"stage,omitempty" validate:"omitempty,oneof=idea building launched profitable"`
}

// UpdateStartupRequest leaves any empty field unchanged.
type UpdateStartupRequest struct {
	Name        string `json:"name,omitempty" validate:"omitempty,min=2,max=80"`
	Tagline     string `json:"tagline,omitempty" validate:"max=140"`
	Description string `json:"description,omitempty" validate:"max=2000"`
	WebsiteURL  string `json:"websiteUrl,omitempty" validate:"omitempty,url"`
	LogoURL     string `json:"logoUrl,omitempty" validate:"omitempty,url"`
	Stage       Stage  `json:"stage,omitempty" validate:"omitempty,oneof=idea building launched profitable"`
}

type CreateMilestoneRequest struct {
	Title       string     `json:"title" validate:"required,min=1,max=120"`
	Description string     `json:"description,omitempty" validate:"max=1000"`
	AchievedAt  *time.Time `json:"achievedAt,omitempty"`
}

type CreateRevenueRequest struct {
	Amount     string `json:"amount" validate:"required"`
	Currency   string `json:"currency,omitempty" validate:"omitempty,len=3,alpha"`
	Note       string `json:"note,omitempty" validate:"max=280"`
	RecordedOn string `json:"recordedOn,omitempty" validate:"omitempty,datetime=2006-01-02"`
}
