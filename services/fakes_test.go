package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"buildInPublicAPI/internal/notification"
	"buildInPublicAPI/internal/types/achievement"
	"buildInPublicAPI/internal/types/streak"
	"buildInPublicAPI/internal/types/user"
)

type dispatched struct {
	UserID string
	Kind   streak.ActivityKind
}

type fakeSink struct {
	mu    sync.Mutex
	calls []dispatched
}

func (f *fakeSink) Dispatch(userID string, kind streak.ActivityKind) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, dispatched{userID, kind})
}

func (f *fakeSink) Calls() []dispatched {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]dispatched(nil), f.calls...)
}

type notified struct {
	UserID string
	Msg    notification.Message
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []notified
}

func (f *fakeNotifier) Notify(userID string, msg notification.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, notified{userID, msg})
}

func (f *fakeNotifier) Calls() []notified {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]notified(nil), f.calls...)
}

type fakeRecorder struct {
	mu        sync.Mutex
	kinds     []streak.ActivityKind
	failFirst int
}

func (f *fakeRecorder) RecordActivity(_ context.Context, userID string, kind streak.ActivityKind) (*streak.ActivityResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kinds = append(f.kinds, kind)
	if len(f.kinds) <= f.failFirst {
		return nil, errors.New("database unavailable")
	}
	return &streak.ActivityResult{Record: streak.DailyStreakRecord{UserID: userID, IsActiveDay: true}}, nil
}

func (f *fakeRecorder) Kinds() []streak.ActivityKind {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]streak.ActivityKind(nil), f.kinds...)
}

type fakeEvaluator struct {
	mu    sync.Mutex
	users []string
}

func (f *fakeEvaluator) Evaluate(_ context.Context, userID string) ([]achievement.Definition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users = append(f.users, userID)
	return nil, nil
}

func (f *fakeEvaluator) Users() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.users...)
}

type fakePush struct {
	mu     sync.Mutex
	tokens [][]notification.DeviceToken
	msgs   []notification.Message
	err    error
}

func (f *fakePush) SendPush(_ context.Context, tokens []notification.DeviceToken, msg notification.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = append(f.tokens, tokens)
	f.msgs = append(f.msgs, msg)
	return f.err
}

func (f *fakePush) Sent() []notification.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]notification.Message(nil), f.msgs...)
}

var userCols = []string{
	"id", "clerk_id", "email", "username", "first_name", "last_name", "image_url", "bio", "website",
	"github_username", "twitter_handle", "current_streak", "longest_streak", "last_activity_date",
	"created_at", "updated_at",
}

func userRowValues(id, clerkID, email, username string) []any {
	return []any{id, clerkID, email, username, "Ada", "Lovelace", "", "", "", "", "", 0, 0, nil, fixedNow, fixedNow}
}

type fakeIdentities struct {
	identity *user.Identity
	err      error
	calls    int
}

func (f *fakeIdentities) FetchIdentity(context.Context, string) (*user.Identity, error) {
	f.calls++
	return f.identity, f.err
}

const (
	postA = "6f1c1c2e-8a55-4b8e-9d7e-3a2f5b1c0d01"
	postB = "6f1c1c2e-8a55-4b8e-9d7e-3a2f5b1c0d02"
	postC = "6f1c1c2e-8a55-4b8e-9d7e-3a2f5b1c0d03"
)

var postCols = []string{
	"id", "user_id", "content", "image_url", "startup_id", "created_at", "updated_at",
	"author_id", "username", "first_name", "last_name", "author_image", "current_streak",
	"likes", "comments", "liked",
}

func postRowValues(id, userID string, createdAt time.Time) []any {
	return []any{id, userID, "update " + id[len(id)-2:], "", nil, createdAt, createdAt,
		userID, "ada", "Ada", "Lovelace", "", 3, 2, 1, false}
}

type fakeTrigger struct {
	mu    sync.Mutex
	users []string
}

func (f *fakeTrigger) Reevaluate(userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users = append(f.users, userID)
}

func (f *fakeTrigger) Users() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.users...)
}
