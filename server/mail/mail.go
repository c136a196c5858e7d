package mail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/topi314/campus-events/internal/xtime"
)

type Provider string

const (
	ProviderLog      Provider = "log"
	ProviderSendGrid Provider = "sendgrid"
)

type Config struct {
	Provider    Provider       `toml:"provider"`
	APIKey      string         `toml:"api_key"`
	FromName    string         `toml:"from_name"`
	FromAddress string         `toml:"from_address"`
	Every       xtime.Duration `toml:"every"`
	Burst       int            `toml:"burst"`
}

func (c Config) String() string {
	return fmt.Sprintf("\n Provider: %s\n APIKey: %s\n FromName: %s\n FromAddress: %s\n Every: %s\n Burst: %d",
		c.Provider,
		strings.Repeat("*", len(c.APIKey)),
		c.FromName,
		c.FromAddress,
		c.Every,
		c.Burst,
	)
}

type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

type Message struct {
	ToName      string
	ToAddress   string
	Subject     string
	Text        string
	HTML        string
	Attachments []Attachment
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// New returns the configured mailer. Sending is rate limited to one message
// every cfg.Every with bursts of cfg.Burst.
func New(cfg Config) (Mailer, error) {
	var m Mailer
	switch cfg.Provider {
	case ProviderSendGrid:
		if cfg.APIKey == "" {
			return nil, errors.New("sendgrid mailer requires an api key")
		}
		m = newSendGrid(cfg)
	case ProviderLog, "":
		m = LogMailer{}
	default:
		return nil, fmt.Errorf("unknown mail provider %q", cfg.Provider)
	}

	if cfg.Every <= 0 {
		return m, nil
	}
	return NewLimited(m, time.Duration(cfg.Every), cfg.Burst), nil
}

func NewLimited(m Mailer, every time.Duration, burst int) *Limited {
	return &Limited{
		mailer:  m,
		limiter: rate.NewLimiter(rate.Every(every), max(burst, 1)),
	}
}

type Limited struct {
	mailer  Mailer
	limiter *rate.Limiter
}

func (l *Limited) Send(ctx context.Context, msg Message) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("failed to wait for mail rate limit: %w", err)
	}
	return l.mailer.Send(ctx, msg)
}

// LogMailer only logs outgoing messages.
type LogMailer struct{}

func (LogMailer) Send(ctx context.Context, msg Message) error {
	slog.InfoContext(ctx, "Sending mail",
		slog.String("to", msg.ToAddress),
		slog.String("subject", msg.Subject),
		slog.Int("attachments", len(msg.Attachments)),
		slog.String("text", msg.Text),
	)
	return nil
}
