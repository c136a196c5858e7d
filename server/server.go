package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/topi314/campus-events/server/auth"
	"github.com/topi314/campus-events/server/mail"
	"github.com/topi314/campus-events/server/notify"
	"github.com/topi314/campus-events/server/ticket"
)

func New(cfg Config) (*Server, error) {
	if cfg.Tickets.Secret == "" {
		slog.Warn("No ticket secret configured, generating a random one. Issued tickets become invalid on restart.")
		cfg.Tickets.Secret = auth.NewToken()
	}

	db, err := newStore(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	mailer, err := mail.New(cfg.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize mailer: %w", err)
	}

	notifier, err := notify.New(cfg.Notifications)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize notifier: %w", err)
	}

	return &Server{
		Cfg: cfg,
		Server: &http.Server{
			Addr:              cfg.Server.Addr,
			ReadHeaderTimeout: 10 * time.Second,
		},
		DB:       db,
		Auth:     auth.New(cfg.Auth, cfg.Server.PublicURL),
		Mailer:   mailer,
		Tickets:  ticket.New(cfg.Tickets),
		Notifier: notifier,
		done:     make(chan struct{}),
	}, nil
}

type Server struct {
	Cfg      Config
	Server   *http.Server
	DB       Store
	Auth     *auth.Auth
	Mailer   mail.Mailer
	Tickets  *ticket.Issuer
	Notifier *notify.Notifier

	done chan struct{}
}

func (s *Server) Start() {
	go s.cleanup()
	if s.Cfg.Attendance.AutoNoShow {
		go s.sweepNoShows()
	}

	go func() {
		if err := s.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", slog.Any("err", err))
		}
	}()
}

func (s *Server) Stop() {
	close(s.done)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.Server.Shutdown(ctx); err != nil {
		slog.Error("Server shutdown failed", slog.Any("err", err))
	}

	s.Notifier.Close(ctx)

	if err := s.DB.Close(); err != nil {
		slog.Error("Failed to close database", slog.Any("err", err))
	}
}

func (s *Server) SendNotification(ctx context.Context, content string) {
	s.Notifier.Send(ctx, content)
}

// sleep waits for d and reports false when the server is stopping.
func (s *Server) sleep(d time.Duration) bool {
	select {
	case <-s.done:
		return false
	case <-time.After(d):
		return true
	}
}
