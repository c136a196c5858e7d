// Package memstore keeps all campus data in memory. It backs the handler tests
// and the demo mode of the server.
package memstore

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/topi314/campus-events/internal/attendance"
	"github.com/topi314/campus-events/internal/xtime"
	"github.com/topi314/campus-events/server/database"
)

type account struct {
	passwordHash  []byte
	studentNumber string
}

type student struct {
	program     string
	year        int
	totalPoints int
}

func New() *Store {
	return &Store{
		profiles:      make(map[string]database.Profile),
		accounts:      make(map[string]account),
		students:      make(map[string]*student),
		organizers:    make(map[string]database.Organizer),
		events:        make(map[string]database.Event),
		rosters:       make(map[string]*attendance.Roster),
		registrations: make(map[string]string),
		studentBadges: make(map[string]map[string]time.Time),
		sessions:      make(map[string]database.Session),
		resets:        make(map[string]database.PasswordReset),
		now:           time.Now,
	}
}

// Store is safe for concurrent use. A single mutex serializes every
// operation, including attendance transitions.
type Store struct {
	mu sync.Mutex

	profiles      map[string]database.Profile
	accounts      map[string]account
	students      map[string]*student
	organizers    map[string]database.Organizer
	events        map[string]database.Event
	rosters       map[string]*attendance.Roster
	registrations map[string]string
	badges        []database.Badge
	studentBadges map[string]map[string]time.Time
	sessions      map[string]database.Session
	resets        map[string]database.PasswordReset
	scans         []database.Scan

	now func() time.Time
}

func (s *Store) Close() error {
	return nil
}

func (s *Store) Ping(context.Context) error {
	return nil
}

func (s *Store) CreateAccount(_ context.Context, a database.NewAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.createAccount(a)
}

func (s *Store) createAccount(a database.NewAccount) error {
	a.Profile.Email = strings.ToLower(a.Profile.Email)
	if _, ok := s.profileByEmail(a.Profile.Email); ok {
		return database.ErrEmailTaken
	}
	if a.StudentNumber != "" {
		for _, acc := range s.accounts {
			if acc.studentNumber == a.StudentNumber {
				return database.ErrStudentNumberTaken
			}
		}
	}

	s.profiles[a.Profile.ID] = a.Profile
	s.accounts[a.Profile.ID] = account{
		passwordHash:  a.PasswordHash,
		studentNumber: a.StudentNumber,
	}
	switch a.Profile.UserType {
	case database.UserTypeStudent:
		s.students[a.Profile.ID] = &student{program: a.Program, year: a.Year}
	case database.UserTypeOrganizer:
		s.organizers[a.Profile.ID] = database.Organizer{
			Profile:    a.Profile,
			Department: a.Department,
			Position:   a.Position,
		}
	}
	return nil
}

func (s *Store) profileByEmail(email string) (database.Profile, bool) {
	email = strings.ToLower(email)
	for _, p := range s.profiles {
		if p.Email == email {
			return p, true
		}
	}
	return database.Profile{}, false
}

func (s *Store) GetProfile(_ context.Context, profileID string) (*database.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[profileID]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &p, nil
}

func (s *Store) GetProfileByEmail(_ context.Context, email string) (*database.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profileByEmail(email)
	if !ok {
		return nil, database.ErrNotFound
	}
	return &p, nil
}

func (s *Store) GetCredentials(_ context.Context, email string) (*database.Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profileByEmail(email)
	if !ok {
		return nil, database.ErrNotFound
	}
	acc, ok := s.accounts[p.ID]
	if !ok || acc.passwordHash == nil {
		return nil, database.ErrNotFound
	}
	return &database.Credentials{
		ProfileID:    p.ID,
		UserType:     p.UserType,
		PasswordHash: acc.passwordHash,
	}, nil
}

func (s *Store) UpdatePassword(_ context.Context, profileID string, passwordHash []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc := s.accounts[profileID]
	acc.passwordHash = passwordHash
	s.accounts[profileID] = acc
	return nil
}

func (s *Store) GetStudent(_ context.Context, studentID string) (*database.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.students[studentID]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &database.Student{
		Profile:       s.profiles[studentID],
		Program:       st.program,
		Year:          st.year,
		TotalPoints:   st.totalPoints,
		StudentNumber: s.accounts[studentID].studentNumber,
	}, nil
}

func (s *Store) GetOrganizer(_ context.Context, organizerID string) (*database.Organizer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.organizers[organizerID]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &o, nil
}

func (s *Store) GetLeaderboard(_ context.Context, limit int) ([]database.LeaderboardEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]database.LeaderboardEntry, 0, len(s.students))
	for id, st := range s.students {
		p := s.profiles[id]
		entries = append(entries, database.LeaderboardEntry{
			StudentID:   id,
			FirstName:   p.FirstName,
			LastName:    p.LastName,
			AvatarURL:   p.AvatarURL,
			TotalPoints: st.totalPoints,
		})
	}
	slices.SortFunc(entries, func(a, b database.LeaderboardEntry) int {
		return cmp.Or(
			cmp.Compare(b.TotalPoints, a.TotalPoints),
			cmp.Compare(a.LastName, b.LastName),
			cmp.Compare(a.FirstName, b.FirstName),
			cmp.Compare(a.StudentID, b.StudentID),
		)
	})
	for i := range entries {
		if i > 0 && entries[i].TotalPoints == entries[i-1].TotalPoints {
			entries[i].Rank = entries[i-1].Rank
			continue
		}
		entries[i].Rank = i + 1
	}

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (s *Store) GetStudentRank(_ context.Context, studentID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var points int
	if st, ok := s.students[studentID]; ok {
		points = st.totalPoints
	}

	rank := 1
	for _, st := range s.students {
		if st.totalPoints > points {
			rank++
		}
	}
	return rank, nil
}

func (s *Store) GetSession(_ context.Context, sessionID string) (*database.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, database.ErrNotFound
	}
	if session.ExpiresAt.Before(s.now()) {
		return nil, database.ErrSessionExpired
	}
	return &session, nil
}

func (s *Store) CreateSession(_ context.Context, session database.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[session.ID] = session
	return nil
}

func (s *Store) DeleteSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, sessionID)
	return nil
}

func (s *Store) DeleteExpiredSessions(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var deleted int64
	for id, session := range s.sessions {
		if session.ExpiresAt.Before(now) {
			delete(s.sessions, id)
			deleted++
		}
	}
	return deleted, nil
}

func (s *Store) CreatePasswordReset(_ context.Context, reset database.PasswordReset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.resets[reset.Token] = reset
	return nil
}

func (s *Store) UsePasswordReset(_ context.Context, token string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	reset, ok := s.resets[token]
	if !ok || reset.UsedAt != nil || !reset.ExpiresAt.After(now) {
		return "", database.ErrResetTokenInvalid
	}
	reset.UsedAt = &now
	s.resets[token] = reset

	for id, session := range s.sessions {
		if session.ProfileID == reset.ProfileID {
			delete(s.sessions, id)
		}
	}
	return reset.ProfileID, nil
}

func (s *Store) DeleteExpiredPasswordResets(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var deleted int64
	for token, reset := range s.resets {
		if reset.ExpiresAt.Before(now) || reset.UsedAt != nil {
			delete(s.resets, token)
			deleted++
		}
	}
	return deleted, nil
}

func (s *Store) InsertEvent(_ context.Context, event database.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	s.events[event.ID] = event
	s.rosters[event.ID] = attendance.NewRoster(event.ID, event.Points, nil)
	return nil
}

func (s *Store) UpdateEvent(_ context.Context, event database.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.events[event.ID]
	if !ok {
		return database.ErrNotFound
	}
	if old.Points != event.Points {
		for _, a := range s.rosters[event.ID].Attendees() {
			if a.PointsAwarded {
				return database.ErrPointsLocked
			}
		}
	}
	event.OrganizerID = old.OrganizerID
	event.CreatedAt = old.CreatedAt
	s.events[event.ID] = event
	s.rosters[event.ID].Points = event.Points
	return nil
}

func (s *Store) withCounts(event database.Event) database.EventWithCounts {
	counts := s.rosters[event.ID].Counts()
	return database.EventWithCounts{
		Event:      event,
		Registered: counts.Total,
		CheckedIn:  counts.CheckedIn,
	}
}

func (s *Store) GetEvent(_ context.Context, eventID string) (*database.EventWithCounts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	event, ok := s.events[eventID]
	if !ok {
		return nil, database.ErrNotFound
	}
	e := s.withCounts(event)
	return &e, nil
}

func matchEvent(e database.Event, f database.EventFilter) bool {
	if f.OrganizerID != "" && e.OrganizerID != f.OrganizerID {
		return false
	}
	if len(f.Categories) > 0 && !slices.Contains(f.Categories, e.Category) {
		return false
	}
	if !f.From.IsZero() && e.StartTime.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !e.StartTime.Before(f.To) {
		return false
	}
	if f.Search == "" {
		return true
	}
	search := strings.ToLower(f.Search)
	return strings.Contains(strings.ToLower(e.Title), search) ||
		strings.Contains(strings.ToLower(e.Location), search) ||
		strings.Contains(strings.ToLower(e.Description), search)
}

func (s *Store) GetEvents(_ context.Context, filter database.EventFilter) ([]database.EventWithCounts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var events []database.EventWithCounts
	for _, e := range s.events {
		if matchEvent(e, filter) {
			events = append(events, s.withCounts(e))
		}
	}
	slices.SortFunc(events, func(a, b database.EventWithCounts) int {
		return cmp.Or(
			a.StartTime.Compare(b.StartTime),
			cmp.Compare(a.Title, b.Title),
			cmp.Compare(a.ID, b.ID),
		)
	})
	if filter.Limit > 0 && len(events) > filter.Limit {
		events = events[:filter.Limit]
	}
	return events, nil
}

func (s *Store) GetCategoryCounts(_ context.Context, organizerID string, from time.Time) ([]database.CategoryCount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[database.Category]int)
	for _, e := range s.events {
		if matchEvent(e, database.EventFilter{OrganizerID: organizerID, From: from}) {
			counts[e.Category]++
		}
	}

	var result []database.CategoryCount
	for _, c := range database.Categories {
		if n := counts[c]; n > 0 {
			result = append(result, database.CategoryCount{Category: c, Count: n})
		}
	}
	return result, nil
}

func (s *Store) GetEventsPendingNoShow(_ context.Context, endedBefore time.Time) ([]database.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var events []database.Event
	for _, e := range s.events {
		if e.EndTime.Before(endedBefore) && s.rosters[e.ID].Counts().Registered > 0 {
			events = append(events, e)
		}
	}
	slices.SortFunc(events, func(a, b database.Event) int {
		return a.EndTime.Compare(b.EndTime)
	})
	return events, nil
}

func (s *Store) GetOrganizerMonthlyCounts(_ context.Context, organizerID string, from time.Time) ([]database.MonthlyCount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	months := make(map[time.Time]*database.MonthlyCount)
	for _, e := range s.events {
		if e.OrganizerID != organizerID || e.StartTime.Before(from) {
			continue
		}
		month, _ := xtime.MonthRange(e.StartTime)
		mc, ok := months[month]
		if !ok {
			mc = &database.MonthlyCount{Month: month}
			months[month] = mc
		}
		mc.Events++
		mc.Attendees += s.rosters[e.ID].Counts().CheckedIn
	}
	return sortedMonths(months), nil
}

func (s *Store) GetStudentMonthlyCounts(_ context.Context, studentID string, from time.Time) ([]database.MonthlyCount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	months := make(map[time.Time]*database.MonthlyCount)
	for _, e := range s.events {
		if e.StartTime.Before(from) {
			continue
		}
		for _, a := range s.rosters[e.ID].Attendees() {
			if a.StudentID != studentID || a.Status != attendance.StatusCheckedIn {
				continue
			}
			month, _ := xtime.MonthRange(e.StartTime)
			mc, ok := months[month]
			if !ok {
				mc = &database.MonthlyCount{Month: month}
				months[month] = mc
			}
			mc.Events++
		}
	}
	return sortedMonths(months), nil
}

func sortedMonths(months map[time.Time]*database.MonthlyCount) []database.MonthlyCount {
	result := make([]database.MonthlyCount, 0, len(months))
	for _, mc := range months {
		result = append(result, *mc)
	}
	slices.SortFunc(result, func(a, b database.MonthlyCount) int {
		return a.Month.Compare(b.Month)
	})
	return result
}
