package user

type CreateUserRequest struct {
	ClerkID   string `json:"clerkId"`
	Email     string `json:"email" validate:"required,email"`
	Username  string `json:"username" validate:"required,username"`
	FirstName string `json:"firstName" validate:"max=60"`
	LastName  string `json:"lastName" validate:"max=60"`
	ImageURL  string `json:"imageUrl,omitempty" validate:"omitempty,url"`
}

// UpdateProfileRequest leaves absent (nil) fields unchanged. An empty string
// clears the field; username cannot be cleared.
type UpdateProfileRequest struct {
	Username       *string `json:"username,omitempty" validate:"omitnil,username"`
	FirstName      *string `json:"firstName,omitempty" validate:"omitempty,max=60"`
	LastName       *string `json:"lastName,omitempty" validate:"omitempty,max=60"`
	ImageURL       *string `json:"imageUrl,omitempty" validate:"omitempty,url"`
	Bio            *string `json:"bio,omitempty" validate:"omitempty,max=280"`
	Website        *string `json:"website,omitempty" validate:"omitempty,url"`
	GitHubUsername *string `json:"githubUsername,omitempty" validate:"omitempty,max=39"`
	TwitterHandle  *string `json:"twitterHandle,omitempty" validate:"omitempty,max=16"`
}
