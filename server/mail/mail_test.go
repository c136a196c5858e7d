package mail

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/topi314/campus-events/internal/xtime"
)

type recorder struct {
	sent []Message
}

func (r *recorder) Send(_ context.Context, msg Message) error {
	r.sent = append(r.sent, msg)
	return nil
}

func TestNew(t *testing.T) {
	m, err := New(Config{Provider: ProviderLog})
	require.NoError(t, err)
	assert.IsType(t, LogMailer{}, m)

	m, err = New(Config{Provider: ProviderLog, Every: xtime.Duration(time.Second), Burst: 5})
	require.NoError(t, err)
	assert.IsType(t, &Limited{}, m)

	_, err = New(Config{Provider: ProviderSendGrid})
	assert.Error(t, err)

	_, err = New(Config{Provider: "pigeon"})
	assert.Error(t, err)
}

func TestLimited(t *testing.T) {
	r := &recorder{}
	l := NewLimited(r, time.Hour, 1)

	require.NoError(t, l.Send(context.Background(), Message{ToAddress: "a@campus.edu"}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, l.Send(ctx, Message{ToAddress: "b@campus.edu"}), "second message must wait for the limiter")

	require.Len(t, r.sent, 1)
	assert.Equal(t, "a@campus.edu", r.sent[0].ToAddress)
}

func TestSendGridPrepare(t *testing.T) {
	s := newSendGrid(Config{APIKey: "key", FromName: "Campus Events", FromAddress: "events@campus.edu"})

	m := s.prepare(Message{
		ToName:    "Jane Doe",
		ToAddress: "jane@campus.edu",
		Subject:   "Your ticket",
		Text:      "See attachment",
		Attachments: []Attachment{
			{Filename: "ticket.png", ContentType: "image/png", Content: []byte("png")},
		},
	})

	require.Len(t, m.Personalizations, 1)
	assert.Equal(t, "Your ticket", m.Personalizations[0].Subject)
	assert.Equal(t, "jane@campus.edu", m.Personalizations[0].To[0].Address)
	assert.Equal(t, "events@campus.edu", m.From.Address)
	require.Len(t, m.Attachments, 1)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("png")), m.Attachments[0].Content)
	assert.Len(t, m.Content, 1)
}
