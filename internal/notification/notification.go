package notification

import (
	"context"
	"time"
)

type Type string

const (
	TypeNewFollower Type = "new_follower"
	TypePostLiked   Type = "post_liked"
	TypeNewComment  Type = "new_comment"
	TypeNewSponsor  Type = "new_sponsor"
	TypeAchievement Type = "achievement"
)

type DeviceToken struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Token     string    `json:"token"`
	Platform  string    `json:"platform"`
	CreatedAt time.Time `json:"createdAt"`
}

type Message struct {
	Type  Type              `json:"type"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

type RegisterDeviceRequest struct {
	Token    string `json:"token" validate:"required,max=4096"`
	Platform string `json:"platform" validate:"required,oneof=ios android web"`
}

// PushProvider delivers a message to device tokens.
type PushProvider interface {
	SendPush(ctx context.Context, tokens []DeviceToken, msg Message) error
}

// NoopProvider is used when no push credentials are configured.
type NoopProvider struct{}

func (NoopProvider) SendPush(context.Context, []DeviceToken, Message) error {
	return nil
}
