// Package clerk holds the webhook payloads sent by the Clerk identity provider.
package clerk

import (
	"encoding/json"

	"buildInPublicAPI/internal/types/user"
)

type ClerkWebhookEvent struct {
	Type   string          `json:"type"`
	Object string          `json:"object"`
	Data   json.RawMessage `json:"data"`
}

type ClerkEmailAddress struct {
	ID           string `json:"id"`
	EmailAddress string `json:"email_address"`
	Verification struct {
		Status string `json:"status"`
	} `json:"verification"`
}

type ClerkUserData struct {
	ID                    string              `json:"id"`
	Username              string              `json:"username"`
	FirstName             string              `json:"first_name"`
	LastName              string              `json:"last_name"`
	ImageURL              string              `json:"image_url"`
	ProfileImageURL       string              `json:"profile_image_url"`
	PrimaryEmailAddressID string              `json:"primary_email_address_id"`
	EmailAddresses        []ClerkEmailAddress `json:"email_addresses"`
}

// Identity converts the payload, preferring the primary email address.
func (d *ClerkUserData) Identity() *user.Identity {
	id := &user.Identity{
		ClerkID:   d.ID,
		Username:  d.Username,
		FirstName: d.FirstName,
		LastName:  d.LastName,
		ImageURL:  d.ImageURL,
	}
	if id.ImageURL == "" {
		id.ImageURL = d.ProfileImageURL
	}
	for _, e := range d.EmailAddresses {
		if id.Email == "" || e.ID == d.PrimaryEmailAddressID {
			id.Email = e.EmailAddress
		}
		if e.ID == d.PrimaryEmailAddressID {
			break
		}
	}
	return id
}
