package memstore

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/topi314/campus-events/internal/attendance"
	"github.com/topi314/campus-events/server/database"
)

func (s *Store) Register(_ context.Context, eventID string, studentID string, now time.Time) (*attendance.Attendee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	event, ok := s.events[eventID]
	if !ok {
		return nil, database.ErrNotFound
	}
	if event.Ended(now) {
		return nil, database.ErrEventEnded
	}
	if _, ok = s.students[studentID]; !ok {
		return nil, database.ErrNotAStudent
	}
	if err := s.checkRegistration(event, studentID); err != nil {
		return nil, err
	}

	p := s.profiles[studentID]
	return s.addToRoster(event.ID, attendance.Details{
		StudentID:     studentID,
		FirstName:     p.FirstName,
		LastName:      p.LastName,
		Email:         p.Email,
		StudentNumber: s.accounts[studentID].studentNumber,
	}), nil
}

func (s *Store) AddAttendee(_ context.Context, eventID string, details attendance.Details) (*attendance.Attendee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	event, ok := s.events[eventID]
	if !ok {
		return nil, database.ErrNotFound
	}

	p, ok := s.profileByEmail(details.Email)
	if ok {
		if p.UserType != database.UserTypeStudent {
			return nil, database.ErrNotAStudent
		}
		if err := s.checkRegistration(event, p.ID); err != nil {
			return nil, err
		}
		details.StudentID = p.ID
		details.FirstName = p.FirstName
		details.LastName = p.LastName
		details.Email = p.Email
		details.StudentNumber = s.accounts[p.ID].studentNumber
		return s.addToRoster(event.ID, details), nil
	}

	if err := s.checkRegistration(event, ""); err != nil {
		return nil, err
	}
	now := s.now()
	details.StudentID = uuid.NewString()
	if err := s.createAccount(database.NewAccount{
		Profile: database.Profile{
			ID:        details.StudentID,
			Email:     details.Email,
			FirstName: details.FirstName,
			LastName:  details.LastName,
			UserType:  database.UserTypeStudent,
			CreatedAt: now,
			UpdatedAt: now,
		},
		StudentNumber: details.StudentNumber,
	}); err != nil {
		return nil, err
	}
	details.Email = s.profiles[details.StudentID].Email
	return s.addToRoster(event.ID, details), nil
}

func (s *Store) checkRegistration(event database.Event, studentID string) error {
	roster := s.rosters[event.ID]
	if studentID != "" {
		for _, a := range roster.Attendees() {
			if a.StudentID == studentID {
				return database.ErrAlreadyRegistered
			}
		}
	}
	if event.Capacity != nil && roster.Len() >= *event.Capacity {
		return database.ErrEventFull
	}
	return nil
}

func (s *Store) addToRoster(eventID string, details attendance.Details) *attendance.Attendee {
	a := s.rosters[eventID].AddAttendee(details)
	s.registrations[a.ID] = eventID
	return &a
}

func (s *Store) GetRoster(_ context.Context, eventID string) ([]attendance.Attendee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	roster, ok := s.rosters[eventID]
	if !ok {
		return nil, nil
	}
	return roster.Attendees(), nil
}

func (s *Store) GetAttendee(_ context.Context, registrationID string) (*database.EventAttendee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	eventID, ok := s.registrations[registrationID]
	if !ok {
		return nil, database.ErrNotFound
	}
	a, _ := s.rosters[eventID].Get(registrationID)
	return &database.EventAttendee{
		EventID:  eventID,
		Attendee: a,
	}, nil
}

func (s *Store) GetStudentRegistrations(_ context.Context, studentID string) ([]database.StudentRegistration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var registrations []database.StudentRegistration
	for eventID, roster := range s.rosters {
		for _, a := range roster.Attendees() {
			if a.StudentID == studentID {
				registrations = append(registrations, database.StudentRegistration{
					Event:    s.events[eventID],
					Attendee: a,
				})
			}
		}
	}
	slices.SortFunc(registrations, func(a, b database.StudentRegistration) int {
		return cmp.Or(
			a.Event.StartTime.Compare(b.Event.StartTime),
			cmp.Compare(a.Event.ID, b.Event.ID),
		)
	})
	return registrations, nil
}

func (s *Store) CheckIn(_ context.Context, eventID string, registrationID string) (*database.AttendanceResult, error) {
	return s.updateAttendance(eventID, registrationID, (*attendance.Roster).MarkCheckedIn)
}

func (s *Store) MarkNoShow(_ context.Context, eventID string, registrationID string) (*database.AttendanceResult, error) {
	return s.updateAttendance(eventID, registrationID, (*attendance.Roster).MarkNoShow)
}

func (s *Store) updateAttendance(eventID string, registrationID string, apply func(*attendance.Roster, string) (attendance.Attendee, bool, error)) (*database.AttendanceResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	roster, ok := s.rosters[eventID]
	if !ok {
		return nil, attendance.ErrAttendeeNotFound
	}
	before, ok := roster.Get(registrationID)
	if !ok {
		return nil, attendance.ErrAttendeeNotFound
	}

	after, changed, err := apply(roster, registrationID)
	if err != nil {
		return nil, err
	}

	result := &database.AttendanceResult{
		Attendee: after,
		Changed:  changed,
	}

	st, ok := s.students[after.StudentID]
	if !ok {
		return result, nil
	}
	if changed && after.PointsAwarded && !before.PointsAwarded {
		st.totalPoints += after.Points
		result.PointsAdded = after.Points
		result.NewBadges = s.grantBadges(after.StudentID, st.totalPoints)
	}
	result.TotalPoints = st.totalPoints
	return result, nil
}

func (s *Store) grantBadges(studentID string, total int) []database.Badge {
	earned, ok := s.studentBadges[studentID]
	if !ok {
		earned = make(map[string]time.Time)
		s.studentBadges[studentID] = earned
	}

	owned := make(map[string]struct{}, len(earned))
	for id := range earned {
		owned[id] = struct{}{}
	}

	now := s.now()
	granted := database.EligibleBadges(total, s.badges, owned)
	for _, b := range granted {
		earned[b.ID] = now
	}
	return granted
}

func (s *Store) MarkPendingNoShows(_ context.Context, eventID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	roster, ok := s.rosters[eventID]
	if !ok {
		return 0, nil
	}

	var marked int
	for _, a := range roster.Filter(attendance.Filter{Status: attendance.StatusRegistered}) {
		_, changed, err := roster.MarkNoShow(a.ID)
		if err != nil {
			return marked, err
		}
		if changed {
			marked++
		}
	}
	return marked, nil
}

func (s *Store) GetBadges(context.Context) ([]database.Badge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.badges), nil
}

func (s *Store) InsertBadge(_ context.Context, badge database.Badge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if badge.ID == "" {
		badge.ID = uuid.NewString()
	}
	s.badges = append(s.badges, badge)
	slices.SortFunc(s.badges, func(a, b database.Badge) int {
		return cmp.Or(
			cmp.Compare(a.PointsRequired, b.PointsRequired),
			cmp.Compare(a.Name, b.Name),
		)
	})
	return nil
}

func (s *Store) GetStudentBadges(_ context.Context, studentID string) ([]database.EarnedBadge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	earned := s.studentBadges[studentID]
	var badges []database.EarnedBadge
	for _, b := range s.badges {
		if at, ok := earned[b.ID]; ok {
			badges = append(badges, database.EarnedBadge{Badge: b, EarnedAt: at})
		}
	}
	slices.SortStableFunc(badges, func(a, b database.EarnedBadge) int {
		return a.EarnedAt.Compare(b.EarnedAt)
	})
	return badges, nil
}

func (s *Store) InsertScan(_ context.Context, scan database.Scan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.scans = append(s.scans, scan)
	return nil
}

func (s *Store) GetScans(_ context.Context, eventID string, limit int) ([]database.ScanWithAttendee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var scans []database.ScanWithAttendee
	for i := len(s.scans) - 1; i >= 0; i-- {
		scan := s.scans[i]
		if scan.EventID != eventID {
			continue
		}
		sa := database.ScanWithAttendee{Scan: scan}
		if scan.RegistrationID != nil {
			if a, ok := s.rosters[eventID].Get(*scan.RegistrationID); ok {
				sa.Name = a.Name
				sa.Email = a.Email
			}
		}
		scans = append(scans, sa)
		if limit > 0 && len(scans) == limit {
			break
		}
	}
	return scans, nil
}
