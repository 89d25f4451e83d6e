package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"buildInPublicAPI/internal/apperr"
	"buildInPublicAPI/internal/notification"
	"buildInPublicAPI/internal/workers"
)

// Notifier is what other services use to push a message to a user.
type Notifier interface {
	Notify(userID string, msg notification.Message)
}

type NotificationService struct {
	db       DB
	pool     *workers.Pool
	provider notification.PushProvider
}

// NewNotificationService delivers pushes on pool. Until SetPushProvider is
// called messages go to a no-op provider.
func NewNotificationService(db DB, pool *workers.Pool) *NotificationService {
	return &NotificationService{
		db:       db,
		pool:     pool,
		provider: notification.NoopProvider{},
	}
}

func (s *NotificationService) SetPushProvider(provider notification.PushProvider) {
	s.provider = provider
}

// RegisterDevice stores a push token for userID. A token already registered
// to another account moves to this one.
func (s *NotificationService) RegisterDevice(ctx context.Context, userID string, req notification.RegisterDeviceRequest) (*notification.DeviceToken, error) {
	if err := apperr.ValidateStruct(req); err != nil {
		return nil, err
	}

	token := &notification.DeviceToken{}
	err := s.db.QueryRow(ctx, `
		INSERT INTO device_tokens (id, user_id, token, platform)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (token) DO UPDATE SET user_id = EXCLUDED.user_id, platform = EXCLUDED.platform
		RETURNING id, user_id, token, platform, created_at
	`, uuid.New().String(), userID, req.Token, req.Platform).Scan(
		&token.ID,
		&token.UserID,
		&token.Token,
		&token.Platform,
		&token.CreatedAt,
	)
	if err != nil {
		return nil, dbError("register device", err)
	}

	return token, nil
}

func (s *NotificationService) UnregisterDevice(ctx context.Context, userID, token string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM device_tokens WHERE user_id = $1 AND token = $2`, userID, token); err != nil {
		return dbError("unregister device", err)
	}
	return nil
}

// Notify queues delivery and returns immediately. Pushes are best effort: a
// full queue drops the message with a warning.
func (s *NotificationService) Notify(userID string, msg notification.Message) {
	job := workers.Job{
		Name: "notify:" + string(msg.Type),
		Run: func(ctx context.Context) error {
			return s.Deliver(ctx, userID, msg)
		},
	}
	if !s.pool.TrySubmit(job) {
		log.WithFields(log.Fields{"user_id": userID, "type": msg.Type}).Warn("notifications: queue full, dropping push")
	}
}

// Deliver sends msg to every device userID has registered.
func (s *NotificationService) Deliver(ctx context.Context, userID string, msg notification.Message) error {
	tokens, err := s.deviceTokens(ctx, userID)
	if err != nil {
		return err
	}
	if len(tokens) == 0 {
		return nil
	}

	if err := s.provider.SendPush(ctx, tokens, msg); err != nil {
		return fmt.Errorf("failed to send push to user %s: %w", userID, err)
	}
	return nil
}

func (s *NotificationService) deviceTokens(ctx context.Context, userID string) ([]notification.DeviceToken, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, token, platform, created_at
		FROM device_tokens
		WHERE user_id = $1
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load device tokens: %w", err)
	}
	defer rows.Close()

	var tokens []notification.DeviceToken
	for rows.Next() {
		var t notification.DeviceToken
		if err := rows.Scan(&t.ID, &t.UserID, &t.Token, &t.Platform, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan device token: %w", err)
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}
