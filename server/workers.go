package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/topi314/campus-events/server/notify"
)

func (s *Server) cleanup() {
	for {
		s.doCleanupSessions()
		s.doCleanupPasswordResets()
		if !s.sleep(5 * time.Minute) {
			return
		}
	}
}

func (s *Server) doCleanupSessions() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rows, err := s.DB.DeleteExpiredSessions(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to cleanup expired sessions", slog.Any("err", err))
		return
	}
	if rows > 0 {
		slog.DebugContext(ctx, "Cleaned up expired sessions", slog.Int64("rows", rows))
	}
}

func (s *Server) doCleanupPasswordResets() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rows, err := s.DB.DeleteExpiredPasswordResets(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to cleanup password resets", slog.Any("err", err))
		return
	}
	if rows > 0 {
		slog.DebugContext(ctx, "Cleaned up password resets", slog.Int64("rows", rows))
	}
}

func (s *Server) sweepNoShows() {
	for {
		s.doSweepNoShows(time.Now())
		if !s.sleep(time.Duration(s.Cfg.Attendance.SweepInterval)) {
			return
		}
	}
}

// doSweepNoShows marks the attendees of events that ended longer than the
// grace period ago and never checked in as no-show.
func (s *Server) doSweepNoShows(now time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
	defer cancel()

	events, err := s.DB.GetEventsPendingNoShow(ctx, now.Add(-time.Duration(s.Cfg.Attendance.GracePeriod)))
	if err != nil {
		slog.ErrorContext(ctx, "Failed to get events pending no-show", slog.Any("err", err))
		return
	}

	for _, event := range events {
		marked, err := s.DB.MarkPendingNoShows(ctx, event.ID)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to mark pending no-shows", slog.String("event_id", event.ID), slog.Any("err", err))
			continue
		}
		if marked == 0 {
			continue
		}

		slog.InfoContext(ctx, "Marked no-shows", slog.String("event_id", event.ID), slog.Int("count", marked))
		s.SendNotification(ctx, fmt.Sprintf("Marked `%d` attendees of **%s** (ended %s) as no-show", marked, event.Title, notify.Timestamp(event.EndTime)))
	}
}
