package ticket

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/yeqown/go-qrcode/v2"
	"github.com/yeqown/go-qrcode/writer/standard"

	"github.com/topi314/campus-events/internal/xio"
	"github.com/topi314/campus-events/internal/xtime"
)

const issuer = "campus-events"

var (
	ErrInvalidTicket = errors.New("invalid ticket")
	ErrWrongEvent    = errors.New("ticket belongs to another event")
)

type Config struct {
	Secret string `toml:"secret"`
	// Validity is how long a ticket stays valid after the event ended.
	Validity xtime.Duration `toml:"validity"`
}

func (c Config) String() string {
	return fmt.Sprintf("\n Secret: %s\n Validity: %s",
		strings.Repeat("*", len(c.Secret)),
		c.Validity,
	)
}

type Claims struct {
	EventID string `json:"eid"`
	jwt.RegisteredClaims
}

func New(cfg Config) *Issuer {
	return &Issuer{
		secret:   []byte(cfg.Secret),
		validity: time.Duration(cfg.Validity),
		now:      time.Now,
	}
}

// Issuer signs and verifies the tickets students show at the entrance.
type Issuer struct {
	secret   []byte
	validity time.Duration
	now      func() time.Time
}

// Sign creates the ticket of a registration. It expires validity after the
// event ended.
func (i *Issuer) Sign(eventID string, registrationID string, eventEnd time.Time) (string, error) {
	now := i.now()
	claims := Claims{
		EventID: eventID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   registrationID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(eventEnd.Add(i.validity)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign ticket: %w", err)
	}
	return token, nil
}

// Verify checks the signature and expiry of a ticket and that it was issued
// for eventID. It returns the registration id.
func (i *Issuer) Verify(token string, eventID string) (string, error) {
	var claims Claims
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if _, err := parser.ParseWithClaims(strings.TrimSpace(token), &claims, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	}); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidTicket, err)
	}

	if claims.Issuer != issuer || claims.Subject == "" {
		return "", ErrInvalidTicket
	}
	if claims.EventID != eventID {
		return "", ErrWrongEvent
	}
	return claims.Subject, nil
}

// WriteQRCode renders content as PNG into w.
func WriteQRCode(w io.Writer, content string) error {
	qr, err := qrcode.New(content)
	if err != nil {
		return fmt.Errorf("failed to create qrcode: %w", err)
	}

	qrW := standard.NewWithWriter(xio.NewResponseWriteCloser(w),
		standard.WithBuiltinImageEncoder(standard.PNG_FORMAT),
		standard.WithQRWidth(8),
	)
	defer func() {
		_ = qrW.Close()
	}()

	if err = qr.Save(qrW); err != nil {
		return fmt.Errorf("failed to save qrcode: %w", err)
	}
	return nil
}
