package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/disgo/webhook"
)

type Config struct {
	Enabled    bool   `toml:"enabled"`
	WebhookURL string `toml:"webhook_url"`
}

func (c Config) String() string {
	return fmt.Sprintf("\n Enabled: %t\n WebhookURL: %s",
		c.Enabled,
		c.WebhookURL,
	)
}

type webhookClient interface {
	CreateContent(content string, opts ...rest.RequestOpt) (*discord.Message, error)
	Close(ctx context.Context)
}

// New returns a notifier posting to a Discord webhook. A disabled notifier
// only logs.
func New(cfg Config) (*Notifier, error) {
	if !cfg.Enabled {
		return &Notifier{}, nil
	}

	client, err := webhook.NewWithURL(cfg.WebhookURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create webhook client: %w", err)
	}
	return &Notifier{client: client}, nil
}

type Notifier struct {
	client webhookClient
}

func (n *Notifier) Send(ctx context.Context, content string) {
	if n.client == nil {
		slog.DebugContext(ctx, "Notification", slog.String("content", content))
		return
	}

	if _, err := n.client.CreateContent(content, rest.WithCtx(ctx)); err != nil {
		slog.ErrorContext(ctx, "Failed to send notification", slog.Any("err", err))
	}
}

func (n *Notifier) Close(ctx context.Context) {
	if n.client != nil {
		n.client.Close(ctx)
	}
}

// Timestamp formats t as a Discord timestamp rendered in the reader's timezone.
func Timestamp(t time.Time) string {
	return discord.NewTimestamp(discord.TimestampStyleShortDateTime, t).String()
}
