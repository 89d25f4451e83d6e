package notification

import (
	"context"
	"errors"
	"testing"

	"firebase.google.com/go/v4/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	sent    []*messaging.Message
	failFor map[string]bool
}

func (f *fakeSender) Send(_ context.Context, m *messaging.Message) (string, error) {
	if f.failFor[m.Token] {
		return "", errors.New("unregistered")
	}
	f.sent = append(f.sent, m)
	return "projects/x/messages/1", nil
}

func TestFCMService_SendPush(t *testing.T) {
	sender := &fakeSender{failFor: map[string]bool{"bad": true}}
	svc := &FCMService{client: sender}

	err := svc.SendPush(context.Background(), []DeviceToken{
		{Token: "ios-token", Platform: "ios"},
		{Token: "android-token", Platform: "android"},
		{Token: "bad", Platform: "web"},
	}, Message{Type: TypeNewFollower, Title: "New follower", Body: "ada followed you", Data: map[string]string{"username": "ada"}})
	require.NoError(t, err)

	require.Len(t, sender.sent, 2)
	assert.NotNil(t, sender.sent[0].APNS)
	assert.NotNil(t, sender.sent[1].Android)
	assert.Equal(t, "new_follower", sender.sent[0].Data["type"])
	assert.Equal(t, "ada", sender.sent[1].Data["username"])
}

func TestFCMService_AllFailed(t *testing.T) {
	svc := &FCMService{client: &fakeSender{failFor: map[string]bool{"a": true, "b": true}}}

	err := svc.SendPush(context.Background(), []DeviceToken{{Token: "a"}, {Token: "b"}}, Message{Title: "x"})
	assert.Error(t, err)
}

func TestFCMService_NoTokens(t *testing.T) {
	svc := &FCMService{client: &fakeSender{}}
	assert.NoError(t, svc.SendPush(context.Background(), nil, Message{}))
}
