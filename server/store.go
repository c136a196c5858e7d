package server

import (
	"context"
	"time"

	"github.com/topi314/campus-events/internal/attendance"
	"github.com/topi314/campus-events/server/database"
	"github.com/topi314/campus-events/server/database/memstore"
)

// Store is implemented by the PostgreSQL database and the in-memory store.
type Store interface {
	Close() error
	Ping(ctx context.Context) error

	CreateAccount(ctx context.Context, account database.NewAccount) error
	GetProfile(ctx context.Context, profileID string) (*database.Profile, error)
	GetProfileByEmail(ctx context.Context, email string) (*database.Profile, error)
	GetCredentials(ctx context.Context, email string) (*database.Credentials, error)
	UpdatePassword(ctx context.Context, profileID string, passwordHash []byte) error
	GetStudent(ctx context.Context, studentID string) (*database.Student, error)
	GetOrganizer(ctx context.Context, organizerID string) (*database.Organizer, error)
	GetLeaderboard(ctx context.Context, limit int) ([]database.LeaderboardEntry, error)
	GetStudentRank(ctx context.Context, studentID string) (int, error)

	GetSession(ctx context.Context, sessionID string) (*database.Session, error)
	CreateSession(ctx context.Context, session database.Session) error
	DeleteSession(ctx context.Context, sessionID string) error
	DeleteExpiredSessions(ctx context.Context) (int64, error)
	CreatePasswordReset(ctx context.Context, reset database.PasswordReset) error
	UsePasswordReset(ctx context.Context, token string) (string, error)
	DeleteExpiredPasswordResets(ctx context.Context) (int64, error)

	InsertEvent(ctx context.Context, event database.Event) error
	UpdateEvent(ctx context.Context, event database.Event) error
	GetEvent(ctx context.Context, eventID string) (*database.EventWithCounts, error)
	GetEvents(ctx context.Context, filter database.EventFilter) ([]database.EventWithCounts, error)
	GetCategoryCounts(ctx context.Context, organizerID string, from time.Time) ([]database.CategoryCount, error)
	GetEventsPendingNoShow(ctx context.Context, endedBefore time.Time) ([]database.Event, error)
	GetOrganizerMonthlyCounts(ctx context.Context, organizerID string, from time.Time) ([]database.MonthlyCount, error)
	GetStudentMonthlyCounts(ctx context.Context, studentID string, from time.Time) ([]database.MonthlyCount, error)

	Register(ctx context.Context, eventID string, studentID string, now time.Time) (*attendance.Attendee, error)
	AddAttendee(ctx context.Context, eventID string, details attendance.Details) (*attendance.Attendee, error)
	GetRoster(ctx context.Context, eventID string) ([]attendance.Attendee, error)
	GetAttendee(ctx context.Context, registrationID string) (*database.EventAttendee, error)
	GetStudentRegistrations(ctx context.Context, studentID string) ([]database.StudentRegistration, error)
	CheckIn(ctx context.Context, eventID string, registrationID string) (*database.AttendanceResult, error)
	MarkNoShow(ctx context.Context, eventID string, registrationID string) (*database.AttendanceResult, error)
	MarkPendingNoShows(ctx context.Context, eventID string) (int, error)

	GetBadges(ctx context.Context) ([]database.Badge, error)
	InsertBadge(ctx context.Context, badge database.Badge) error
	GetStudentBadges(ctx context.Context, studentID string) ([]database.EarnedBadge, error)

	InsertScan(ctx context.Context, scan database.Scan) error
	GetScans(ctx context.Context, eventID string, limit int) ([]database.ScanWithAttendee, error)
}

var (
	_ Store = (*database.Database)(nil)
	_ Store = (*memstore.Store)(nil)
)

func newStore(cfg database.Config) (Store, error) {
	switch cfg.Type {
	case database.TypeMemory:
		s := memstore.New()
		if cfg.Seed {
			if err := memstore.Seed(context.Background(), s); err != nil {
				return nil, err
			}
		}
		return s, nil
	default:
		db, err := database.New(cfg)
		if err != nil {
			return nil, err
		}
		return db, nil
	}
}
