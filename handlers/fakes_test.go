package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"

	"buildInPublicAPI/internal/types/sponsor"
	"buildInPublicAPI/internal/types/user"
)

type fakeSponsorEvents struct {
	mu       sync.Mutex
	paid     []sponsor.OrderPaid
	created  []sponsor.SubscriptionCreated
	canceled []sponsor.SubscriptionCanceled
	outcome  *sponsor.Outcome
	err      error
}

func (f *fakeSponsorEvents) result() (*sponsor.Outcome, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.outcome != nil {
		return f.outcome, nil
	}
	return &sponsor.Outcome{RowsAffected: 1}, nil
}

func (f *fakeSponsorEvents) ApplyOrderPaid(_ context.Context, ev sponsor.OrderPaid) (*sponsor.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paid = append(f.paid, ev)
	return f.result()
}

func (f *fakeSponsorEvents) ApplySubscriptionCreated(_ context.Context, ev sponsor.SubscriptionCreated) (*sponsor.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, ev)
	return f.result()
}

func (f *fakeSponsorEvents) ApplySubscriptionCanceled(_ context.Context, ev sponsor.SubscriptionCanceled) (*sponsor.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.canceled = append(f.canceled, ev)
	return f.result()
}

func (f *fakeSponsorEvents) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.paid) + len(f.created) + len(f.canceled)
}

// fakeRequestVerifier reads the body the way the Paddle SDK does so tests
// catch a handler that forgets to restore it.
type fakeRequestVerifier struct {
	valid bool
	err   error
	seen  []byte
}

func (f *fakeRequestVerifier) Verify(r *http.Request) (bool, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return false, err
	}
	f.seen = body
	return f.valid, f.err
}

type fakeIdentitySync struct {
	synced    []*user.Identity
	deleted   []string
	syncErr   error
	deleteErr error
}

func (f *fakeIdentitySync) SyncIdentity(_ context.Context, identity *user.Identity) (*user.User, error) {
	f.synced = append(f.synced, identity)
	if f.syncErr != nil {
		return nil, f.syncErr
	}
	return &user.User{ID: "u1", ClerkID: identity.ClerkID, Email: identity.Email}, nil
}

func (f *fakeIdentitySync) DeleteUserByClerkID(_ context.Context, clerkID string) error {
	f.deleted = append(f.deleted, clerkID)
	return f.deleteErr
}

type rejectAll struct{}

func (rejectAll) Verify([]byte, http.Header) error {
	return errors.New("no matching signature found")
}
