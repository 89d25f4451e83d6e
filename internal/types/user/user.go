package user

import "time"

type User struct {
	ID               string     `json:"id"`
	ClerkID          string     `json:"clerkId,omitempty"`
	Email            string     `json:"email"`
	Username         string     `json:"username"`
	FirstName        string     `json:"firstName"`
	LastName         string     `json:"lastName"`
	ImageURL         string     `json:"imageUrl,omitempty"`
	Bio              string     `json:"bio,omitempty"`
	Website          string     `json:"website,omitempty"`
	GitHubUsername   string     `json:"githubUsername,omitempty"`
	TwitterHandle    string     `json:"twitterHandle,omitempty"`
	CurrentStreak    int        `json:"currentStreak"`
	LongestStreak    int        `json:"longestStreak"`
	LastActivityDate *time.Time `json:"lastActivityDate,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// Summary is the public author card embedded in posts, comments and follower lists.
type Summary struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	FirstName     string `json:"firstName"`
	LastName      string `json:"lastName"`
	ImageURL      string `json:"imageUrl,omitempty"`
	CurrentStreak int    `json:"currentStreak"`
}

func (u *User) Summary() Summary {
	return Summary{
		ID:            u.ID,
		Username:      u.Username,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		ImageURL:      u.ImageURL,
		CurrentStreak: u.CurrentStreak,
	}
}

type Profile struct {
	User           *User `json:"user"`
	FollowerCount  int   `json:"followerCount"`
	FollowingCount int   `json:"followingCount"`
	PostCount      int   `json:"postCount"`
	IsFollowing    bool  `json:"isFollowing"`
	IsOwnProfile   bool  `json:"isOwnProfile"`
}

// Identity is the authenticated-user object supplied by the identity provider.
type Identity struct {
	ClerkID   string
	Email     string
	Username  string
	FirstName string
	LastName  string
	ImageURL  string
}

type BuilderPage struct {
	Builders []*Summary `json:"builders"`
	Page     int        `json:"page"`
	PageSize int        `json:"pageSize"`
	HasMore  bool       `json:"hasMore"`
}
