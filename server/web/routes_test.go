package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/topi314/campus-events/internal/xtime"
	"github.com/topi314/campus-events/server"
	"github.com/topi314/campus-events/server/auth"
	"github.com/topi314/campus-events/server/database"
	"github.com/topi314/campus-events/server/database/memstore"
	"github.com/topi314/campus-events/server/mail"
	"github.com/topi314/campus-events/server/notify"
	"github.com/topi314/campus-events/server/ticket"
)

type recordingMailer struct {
	mu       sync.Mutex
	messages []mail.Message
}

func (m *recordingMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	return nil
}

func (m *recordingMailer) Messages() []mail.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mail.Message(nil), m.messages...)
}

type testServer struct {
	t       *testing.T
	handler http.Handler
	store   *memstore.Store
	mailer  *recordingMailer
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store := memstore.New()
	require.NoError(t, memstore.Seed(context.Background(), store))

	notifier, err := notify.New(notify.Config{})
	require.NoError(t, err)

	cfg := server.Config{
		Server: server.ServerConfig{
			Addr:      ":0",
			PublicURL: "http://campus.test",
		},
		Auth: auth.Config{
			SessionDuration:    xtime.Duration(time.Hour),
			ResetTokenDuration: xtime.Duration(time.Hour),
		},
		Tickets: ticket.Config{
			Secret:   "test-secret",
			Validity: xtime.Duration(time.Hour),
		},
	}

	mailer := &recordingMailer{}
	srv := &server.Server{
		Cfg:      cfg,
		Server:   &http.Server{},
		DB:       store,
		Auth:     auth.New(cfg.Auth, cfg.Server.PublicURL),
		Mailer:   mailer,
		Tickets:  ticket.New(cfg.Tickets),
		Notifier: notifier,
	}

	return &testServer{
		t:       t,
		handler: Routes(srv),
		store:   store,
		mailer:  mailer,
	}
}

// do sends a request with an optional JSON body and session token.
func (s *testServer) do(method string, target string, token string, body any) *httptest.ResponseRecorder {
	s.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}

	rq := httptest.NewRequest(method, target, &buf)
	if body != nil {
		rq.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		rq.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, rq)
	return rec
}

func (s *testServer) login(email string) string {
	s.t.Helper()

	rec := s.do(http.MethodPost, "/login", "", map[string]string{
		"email":    email,
		"password": memstore.SeedPassword,
	})
	require.Equal(s.t, http.StatusOK, rec.Code, rec.Body.String())

	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookie {
			return c.Value
		}
	}
	s.t.Fatal("login did not set a session cookie")
	return ""
}

func (s *testServer) eventID(title string) string {
	s.t.Helper()

	events, err := s.store.GetEvents(context.Background(), database.EventFilter{Search: title})
	require.NoError(s.t, err)
	require.Len(s.t, events, 1)
	return events[0].ID
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[healthResponse](t, rec).Status)
}

func TestRoleChecks(t *testing.T) {
	s := newTestServer(t)
	summitID := s.eventID("Tech Innovation Summit")
	student := s.login("john.doe@university.edu")
	organizer := s.login(memstore.SeedOrganizerEmail)

	tests := []struct {
		name   string
		method string
		target string
		token  string
		status int
	}{
		{"anonymous me", http.MethodGet, "/me", "", http.StatusUnauthorized},
		{"unknown session", http.MethodGet, "/me", "not-a-session", http.StatusUnauthorized},
		{"student roster", http.MethodGet, "/events/" + summitID + "/attendees", student, http.StatusForbidden},
		{"organizer register", http.MethodPost, "/events/" + summitID + "/register", organizer, http.StatusForbidden},
		{"student organizer dashboard", http.MethodGet, "/dashboard/organizer", student, http.StatusForbidden},
		{"organizer student dashboard", http.MethodGet, "/dashboard/student", organizer, http.StatusForbidden},
		{"student dashboard", http.MethodGet, "/dashboard/student", student, http.StatusOK},
		{"organizer dashboard", http.MethodGet, "/dashboard/organizer", organizer, http.StatusOK},
		{"unknown event", http.MethodGet, "/events/does-not-exist", student, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(tt.method, tt.target, tt.token, nil)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestListEvents(t *testing.T) {
	s := newTestServer(t)
	student := s.login("john.doe@university.edu")

	rec := s.do(http.MethodGet, "/events?category=Cultural", student, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	events := decode[[]eventResponse](t, rec)
	require.Len(t, events, 2)
	for _, e := range events {
		assert.Equal(t, database.CategoryCultural, e.Category)
		require.NotNil(t, e.IsRegistered)
		assert.False(t, *e.IsRegistered)
	}

	rec = s.do(http.MethodGet, "/events?q=summit", student, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	events = decode[[]eventResponse](t, rec)
	require.Len(t, events, 1)
	assert.Equal(t, 15, events[0].Registered)
	assert.Equal(t, 8, events[0].CheckedIn)
	require.NotNil(t, events[0].Remaining)
	assert.Equal(t, 185, *events[0].Remaining)
	require.NotNil(t, events[0].IsRegistered)
	assert.True(t, *events[0].IsRegistered)

	rec = s.do(http.MethodGet, "/events?category=Parties", student, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateAndUpdateEvent(t *testing.T) {
	s := newTestServer(t)
	organizer := s.login(memstore.SeedOrganizerEmail)

	start := time.Now().Add(48 * time.Hour).Truncate(time.Second)
	body := map[string]any{
		"title":      "Chess Night",
		"category":   "Cultural",
		"location":   "Library",
		"start_time": start,
		"end_time":   start.Add(2 * time.Hour),
		"capacity":   2,
		"points":     15,
	}

	rec := s.do(http.MethodPost, "/events", organizer, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[eventResponse](t, rec)
	assert.Equal(t, "Chess Night", created.Title)
	require.NotNil(t, created.Remaining)
	assert.Equal(t, 2, *created.Remaining)

	body["end_time"] = start.Add(-time.Hour)
	rec = s.do(http.MethodPut, "/events/"+created.ID, organizer, body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[errorResponse](t, rec).Fields, "end_time")

	body["end_time"] = start.Add(3 * time.Hour)
	body["points"] = 25
	rec = s.do(http.MethodPut, "/events/"+created.ID, organizer, body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 25, decode[eventResponse](t, rec).Points)

	student := s.login("jane.smith@university.edu")
	rec = s.do(http.MethodPost, "/events", student, body)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestUpdateEventPointsLocked(t *testing.T) {
	s := newTestServer(t)
	summitID := s.eventID("Tech Innovation Summit")
	organizer := s.login(memstore.SeedOrganizerEmail)

	rec := s.do(http.MethodGet, "/events/"+summitID, organizer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	summit := decode[eventResponse](t, rec)

	body := map[string]any{
		"title":       summit.Title,
		"description": summit.Description,
		"category":    summit.Category,
		"location":    "Main Hall",
		"start_time":  summit.StartTime,
		"end_time":    summit.EndTime,
		"capacity":    summit.Capacity,
		"points":      summit.Points + 10,
	}

	rec = s.do(http.MethodPut, "/events/"+summitID, organizer, body)
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())

	body["points"] = summit.Points
	rec = s.do(http.MethodPut, "/events/"+summitID, organizer, body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Main Hall", decode[eventResponse](t, rec).Location)
}

func TestRegisterForFullEvent(t *testing.T) {
	s := newTestServer(t)
	organizer := s.login(memstore.SeedOrganizerEmail)

	start := time.Now().Add(24 * time.Hour).Truncate(time.Second)
	rec := s.do(http.MethodPost, "/events", organizer, map[string]any{
		"title":      "Robotics Lab Tour",
		"category":   "Academic",
		"location":   "Engineering Building",
		"start_time": start,
		"end_time":   start.Add(time.Hour),
		"capacity":   1,
		"points":     10,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	tourID := decode[eventResponse](t, rec).ID

	jane := s.login("jane.smith@university.edu")
	rec = s.do(http.MethodPost, "/events/"+tourID+"/register", jane, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPost, "/events/"+tourID+"/register", jane, nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, database.ErrAlreadyRegistered.Error(), decode[errorResponse](t, rec).Error)

	rec = s.do(http.MethodPost, "/events/"+tourID+"/register", s.login("john.doe@university.edu"), nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, database.ErrEventFull.Error(), decode[errorResponse](t, rec).Error)
}

func TestRegisterForEvent(t *testing.T) {
	s := newTestServer(t)
	workshopID := s.eventID("Career Development Workshop")
	summitID := s.eventID("Tech Innovation Summit")
	student := s.login("jane.smith@university.edu")

	rec := s.do(http.MethodPost, "/events/"+workshopID+"/register", student, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "registered", decode[map[string]any](t, rec)["status"])

	rec = s.do(http.MethodPost, "/events/"+workshopID+"/register", student, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(http.MethodPost, "/events/"+summitID+"/register", student, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(http.MethodGet, "/registrations?upcoming=true", student, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	registrations := decode[[]registrationResponse](t, rec)
	require.Len(t, registrations, 2)
	assert.Equal(t, "Tech Innovation Summit", registrations[0].Event.Title)
	assert.Equal(t, "Career Development Workshop", registrations[1].Event.Title)
}

func TestCalendar(t *testing.T) {
	s := newTestServer(t)
	student := s.login("john.doe@university.edu")

	rec := s.do(http.MethodGet, "/calendar?month="+url.QueryEscape("not-a-month"), student, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, "/calendar", student, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	calendar := decode[calendarResponse](t, rec)
	assert.Equal(t, xtime.MonthKey(time.Now()), calendar.Month)
	for i := 1; i < len(calendar.Days); i++ {
		assert.Less(t, calendar.Days[i-1].Date, calendar.Days[i].Date)
	}
}

func TestLeaderboardAndBadges(t *testing.T) {
	s := newTestServer(t)
	student := s.login("john.doe@university.edu")
	organizer := s.login(memstore.SeedOrganizerEmail)

	rec := s.do(http.MethodGet, "/leaderboard?limit=3", student, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	entries := decode[[]map[string]any](t, rec)
	require.Len(t, entries, 3)
	assert.EqualValues(t, 50, entries[0]["total_points"])

	rec = s.do(http.MethodPost, "/badges", organizer, map[string]any{
		"name":            "Explorer",
		"points_required": 250,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(http.MethodGet, "/badges", student, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]badgeResponse](t, rec), 4)

	rec = s.do(http.MethodGet, "/dashboard/student", student, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	dashboard := decode[studentDashboardResponse](t, rec)
	assert.Equal(t, 50, dashboard.TotalPoints)
	assert.Equal(t, 1, dashboard.AttendedEvents)
	require.Len(t, dashboard.Badges, 1)
	assert.Equal(t, "First Steps", dashboard.Badges[0].Name)
	assert.Len(t, dashboard.Monthly, studentDashboardMonths)
}
