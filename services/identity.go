package services

import (
	"context"
	"fmt"

	"github.com/clerk/clerk-sdk-go/v2"
	clerkuser "github.com/clerk/clerk-sdk-go/v2/user"

	"buildInPublicAPI/internal/types/user"
)

// IdentityFetcher loads the identity provider's view of a user.
type IdentityFetcher interface {
	FetchIdentity(ctx context.Context, clerkID string) (*user.Identity, error)
}

// ClerkIdentityFetcher reads users from the Clerk backend API. clerk.SetKey
// must have been called.
type ClerkIdentityFetcher struct{}

func (ClerkIdentityFetcher) FetchIdentity(ctx context.Context, clerkID string) (*user.Identity, error) {
	u, err := clerkuser.Get(ctx, clerkID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch clerk user %s: %w", clerkID, err)
	}
	return IdentityFromClerk(u), nil
}

// IdentityFromClerk picks the primary email, falling back to the first one.
func IdentityFromClerk(u *clerk.User) *user.Identity {
	id := &user.Identity{
		ClerkID:   u.ID,
		Username:  deref(u.Username),
		FirstName: deref(u.FirstName),
		LastName:  deref(u.LastName),
		ImageURL:  deref(u.ImageURL),
	}

	primary := deref(u.PrimaryEmailAddressID)
	for _, e := range u.EmailAddresses {
		if e == nil {
			continue
		}
		if id.Email == "" || e.ID == primary {
			id.Email = e.EmailAddress
		}
		if e.ID == primary {
			break
		}
	}
	return id
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
