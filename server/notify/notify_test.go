package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWebhook struct {
	contents []string
	err      error
	closed   bool
}

func (f *fakeWebhook) CreateContent(content string, _ ...rest.RequestOpt) (*discord.Message, error) {
	f.contents = append(f.contents, content)
	return nil, f.err
}

func (f *fakeWebhook) Close(context.Context) {
	f.closed = true
}

func TestDisabled(t *testing.T) {
	n, err := New(Config{Enabled: false, WebhookURL: "not a url"})
	require.NoError(t, err)

	n.Send(context.Background(), "hello")
	n.Close(context.Background())
}

func TestSend(t *testing.T) {
	f := &fakeWebhook{}
	n := &Notifier{client: f}

	n.Send(context.Background(), "event created")
	f.err = errors.New("rate limited")
	n.Send(context.Background(), "event full")
	n.Close(context.Background())

	assert.Equal(t, []string{"event created", "event full"}, f.contents)
	assert.True(t, f.closed)
}

func TestTimestamp(t *testing.T) {
	ts := time.Unix(1700000000, 0)
	assert.Equal(t, "<t:1700000000:f>", Timestamp(ts))
}
