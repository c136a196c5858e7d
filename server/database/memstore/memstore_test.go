package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/topi314/campus-events/internal/attendance"
	"github.com/topi314/campus-events/server/database"
)

func newStudent(t *testing.T, s *Store, email string, number string) string {
	t.Helper()

	id := uuid.NewString()
	require.NoError(t, s.CreateAccount(context.Background(), database.NewAccount{
		Profile: database.Profile{
			ID:        id,
			Email:     email,
			FirstName: "Test",
			LastName:  "Student",
			UserType:  database.UserTypeStudent,
		},
		PasswordHash:  []byte("hash"),
		StudentNumber: number,
	}))
	return id
}

func newEvent(t *testing.T, s *Store, capacity *int, points int, start time.Time) string {
	t.Helper()

	id := uuid.NewString()
	require.NoError(t, s.InsertEvent(context.Background(), database.Event{
		ID:          id,
		Title:       "Event " + id[:8],
		Category:    database.CategoryAcademic,
		Location:    "Main Auditorium",
		StartTime:   start,
		EndTime:     start.Add(2 * time.Hour),
		Capacity:    capacity,
		Points:      points,
		OrganizerID: "organizer",
	}))
	return id
}

func TestSeed(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, Seed(ctx, s))

	events, err := s.GetEvents(ctx, database.EventFilter{Search: "tech innovation"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, 15, events[0].Registered)
	assert.Equal(t, 8, events[0].CheckedIn)

	roster, err := s.GetRoster(ctx, events[0].ID)
	require.NoError(t, err)
	assert.Equal(t, attendance.Counts{Total: 15, Registered: 5, CheckedIn: 8, NoShow: 2}, attendance.Count(roster))

	leaderboard, err := s.GetLeaderboard(ctx, 3)
	require.NoError(t, err)
	require.Len(t, leaderboard, 3)
	assert.Equal(t, 50, leaderboard[0].TotalPoints)
	assert.Equal(t, 1, leaderboard[2].Rank, "students with equal points share a rank")

	creds, err := s.GetCredentials(ctx, SeedOrganizerEmail)
	require.NoError(t, err)
	assert.Equal(t, database.UserTypeOrganizer, creds.UserType)
}

func TestCreateAccount(t *testing.T) {
	ctx := context.Background()
	s := New()
	newStudent(t, s, "Jane@Campus.edu", "S1")

	err := s.CreateAccount(ctx, database.NewAccount{Profile: database.Profile{ID: "x", Email: "jane@campus.edu", UserType: database.UserTypeStudent}})
	assert.ErrorIs(t, err, database.ErrEmailTaken)

	err = s.CreateAccount(ctx, database.NewAccount{Profile: database.Profile{ID: "y", Email: "other@campus.edu", UserType: database.UserTypeStudent}, StudentNumber: "S1"})
	assert.ErrorIs(t, err, database.ErrStudentNumberTaken)

	p, err := s.GetProfileByEmail(ctx, "JANE@campus.edu")
	require.NoError(t, err)
	assert.Equal(t, "jane@campus.edu", p.Email)
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Now()
	capacity := 1
	eventID := newEvent(t, s, &capacity, 10, now.Add(time.Hour))
	first := newStudent(t, s, "first@campus.edu", "S1")
	second := newStudent(t, s, "second@campus.edu", "S2")

	a, err := s.Register(ctx, eventID, first, now)
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusRegistered, a.Status)
	assert.Equal(t, 0, a.Points)
	assert.Equal(t, "S1", a.StudentNumber)

	_, err = s.Register(ctx, eventID, first, now)
	assert.ErrorIs(t, err, database.ErrAlreadyRegistered)

	_, err = s.Register(ctx, eventID, second, now)
	assert.ErrorIs(t, err, database.ErrEventFull)

	_, err = s.Register(ctx, eventID, second, now.Add(24*time.Hour))
	assert.ErrorIs(t, err, database.ErrEventEnded)

	_, err = s.Register(ctx, "missing", second, now)
	assert.ErrorIs(t, err, database.ErrNotFound)

	registrations, err := s.GetStudentRegistrations(ctx, first)
	require.NoError(t, err)
	require.Len(t, registrations, 1)
	assert.Equal(t, eventID, registrations[0].Event.ID)
}

func TestAddAttendeeCreatesStudent(t *testing.T) {
	ctx := context.Background()
	s := New()
	eventID := newEvent(t, s, nil, 10, time.Now().Add(time.Hour))

	a, err := s.AddAttendee(ctx, eventID, attendance.Details{
		FirstName:     "Walk",
		LastName:      "In",
		Email:         "Walk.In@campus.edu",
		StudentNumber: "S99",
	})
	require.NoError(t, err)
	assert.Equal(t, "Walk In", a.Name)
	assert.Equal(t, "walk.in@campus.edu", a.Email)

	st, err := s.GetStudent(ctx, a.StudentID)
	require.NoError(t, err)
	assert.Equal(t, "S99", st.StudentNumber)

	_, err = s.GetCredentials(ctx, "walk.in@campus.edu")
	assert.ErrorIs(t, err, database.ErrNotFound, "added students have no password")

	_, err = s.AddAttendee(ctx, eventID, attendance.Details{Email: "walk.in@campus.edu"})
	assert.ErrorIs(t, err, database.ErrAlreadyRegistered)
}

func TestCheckInAwardsOnce(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.InsertBadge(ctx, database.Badge{ID: "b10", Name: "Ten", PointsRequired: 10}))
	require.NoError(t, s.InsertBadge(ctx, database.Badge{ID: "b100", Name: "Hundred", PointsRequired: 100}))

	eventID := newEvent(t, s, nil, 25, time.Now().Add(time.Hour))
	studentID := newStudent(t, s, "s@campus.edu", "S1")
	a, err := s.Register(ctx, eventID, studentID, time.Now())
	require.NoError(t, err)

	result, err := s.CheckIn(ctx, eventID, a.ID)
	require.NoError(t, err)
	assert.True(t, result.Changed)
	assert.Equal(t, 25, result.PointsAdded)
	assert.Equal(t, 25, result.TotalPoints)
	require.Len(t, result.NewBadges, 1)
	assert.Equal(t, "b10", result.NewBadges[0].ID)

	result, err = s.CheckIn(ctx, eventID, a.ID)
	require.NoError(t, err)
	assert.False(t, result.Changed)
	assert.Equal(t, 0, result.PointsAdded)
	assert.Equal(t, 25, result.TotalPoints)
	assert.Empty(t, result.NewBadges)

	badges, err := s.GetStudentBadges(ctx, studentID)
	require.NoError(t, err)
	assert.Len(t, badges, 1)

	_, err = s.MarkNoShow(ctx, eventID, a.ID)
	assert.ErrorIs(t, err, attendance.ErrInvalidTransition)

	_, err = s.CheckIn(ctx, eventID, "missing")
	assert.ErrorIs(t, err, attendance.ErrAttendeeNotFound)
}

func TestUpdateEventPointsLocked(t *testing.T) {
	ctx := context.Background()
	s := New()
	eventID := newEvent(t, s, nil, 25, time.Now().Add(time.Hour))
	a, err := s.Register(ctx, eventID, newStudent(t, s, "s@campus.edu", "S1"), time.Now())
	require.NoError(t, err)

	event, err := s.GetEvent(ctx, eventID)
	require.NoError(t, err)

	// nobody has been awarded yet
	event.Points = 30
	require.NoError(t, s.UpdateEvent(ctx, event.Event))

	_, err = s.CheckIn(ctx, eventID, a.ID)
	require.NoError(t, err)

	event.Points = 40
	assert.ErrorIs(t, s.UpdateEvent(ctx, event.Event), database.ErrPointsLocked)

	event.Points = 30
	event.Location = "Main Hall"
	require.NoError(t, s.UpdateEvent(ctx, event.Event))

	roster, err := s.GetRoster(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, 30, roster[0].Points)
}

func TestMarkPendingNoShows(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Now()
	eventID := newEvent(t, s, nil, 10, now.Add(-time.Minute))

	var ids []string
	for _, email := range []string{"a@campus.edu", "b@campus.edu", "c@campus.edu"} {
		a, err := s.Register(ctx, eventID, newStudent(t, s, email, ""), now.Add(-2*time.Minute))
		require.NoError(t, err)
		ids = append(ids, a.ID)
	}
	_, err := s.CheckIn(ctx, eventID, ids[0])
	require.NoError(t, err)

	events, err := s.GetEventsPendingNoShow(ctx, now.Add(3*time.Hour))
	require.NoError(t, err)
	require.Len(t, events, 1)

	marked, err := s.MarkPendingNoShows(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, 2, marked)

	roster, err := s.GetRoster(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, attendance.Counts{Total: 3, CheckedIn: 1, NoShow: 2}, attendance.Count(roster))

	events, err = s.GetEventsPendingNoShow(ctx, now.Add(3*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestSessions(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Now()

	require.NoError(t, s.CreateSession(ctx, database.Session{ID: "valid", ProfileID: "p", ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, s.CreateSession(ctx, database.Session{ID: "expired", ProfileID: "p", ExpiresAt: now.Add(-time.Hour)}))

	_, err := s.GetSession(ctx, "valid")
	assert.NoError(t, err)
	_, err = s.GetSession(ctx, "expired")
	assert.ErrorIs(t, err, database.ErrSessionExpired)
	_, err = s.GetSession(ctx, "missing")
	assert.ErrorIs(t, err, database.ErrNotFound)

	deleted, err := s.DeleteExpiredSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}

func TestPasswordReset(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Now()

	require.NoError(t, s.CreateSession(ctx, database.Session{ID: "session", ProfileID: "p", ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, s.CreatePasswordReset(ctx, database.PasswordReset{Token: "token", ProfileID: "p", ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, s.CreatePasswordReset(ctx, database.PasswordReset{Token: "old", ProfileID: "p", ExpiresAt: now.Add(-time.Hour)}))

	profileID, err := s.UsePasswordReset(ctx, "token")
	require.NoError(t, err)
	assert.Equal(t, "p", profileID)

	_, err = s.GetSession(ctx, "session")
	assert.ErrorIs(t, err, database.ErrNotFound, "resetting the password revokes sessions")

	_, err = s.UsePasswordReset(ctx, "token")
	assert.ErrorIs(t, err, database.ErrResetTokenInvalid)
	_, err = s.UsePasswordReset(ctx, "old")
	assert.ErrorIs(t, err, database.ErrResetTokenInvalid)

	deleted, err := s.DeleteExpiredPasswordResets(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)
}

func TestGetEventsFilter(t *testing.T) {
	ctx := context.Background()
	s := New()
	base := time.Date(2024, 4, 1, 10, 0, 0, 0, time.UTC)

	for i, c := range []database.Category{database.CategoryAcademic, database.CategorySports, database.CategoryAcademic} {
		require.NoError(t, s.InsertEvent(ctx, database.Event{
			ID:          uuid.NewString(),
			Title:       string(c),
			Category:    c,
			Location:    "Campus",
			StartTime:   base.AddDate(0, 0, i*10),
			EndTime:     base.AddDate(0, 0, i*10).Add(time.Hour),
			OrganizerID: "organizer",
		}))
	}

	events, err := s.GetEvents(ctx, database.EventFilter{Categories: []database.Category{database.CategoryAcademic}})
	require.NoError(t, err)
	assert.Len(t, events, 2)

	events, err = s.GetEvents(ctx, database.EventFilter{From: base.AddDate(0, 0, 5), To: base.AddDate(0, 0, 15)})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, database.CategorySports, events[0].Category)

	counts, err := s.GetCategoryCounts(ctx, "organizer", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, []database.CategoryCount{
		{Category: database.CategoryAcademic, Count: 2},
		{Category: database.CategorySports, Count: 1},
	}, counts)

	monthly, err := s.GetOrganizerMonthlyCounts(ctx, "organizer", base)
	require.NoError(t, err)
	require.Len(t, monthly, 1)
	assert.Equal(t, 3, monthly[0].Events)
}
