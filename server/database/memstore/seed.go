package memstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/topi314/campus-events/internal/attendance"
	"github.com/topi314/campus-events/server/auth"
	"github.com/topi314/campus-events/server/database"
)

// SeedPassword is the password of every seeded account.
const SeedPassword = "campus-events"

const SeedOrganizerEmail = "organizer@university.edu"

type seedStudent struct {
	name   string
	email  string
	number string
	status attendance.Status
}

var seedStudents = []seedStudent{
	{"John Doe", "john.doe@university.edu", "S12345678", attendance.StatusCheckedIn},
	{"Jane Smith", "jane.smith@university.edu", "S23456789", attendance.StatusRegistered},
	{"Alex Johnson", "alex.j@university.edu", "S34567890", attendance.StatusCheckedIn},
	{"Sarah Williams", "sarah.w@university.edu", "S45678901", attendance.StatusRegistered},
	{"Michael Brown", "michael.b@university.edu", "S56789012", attendance.StatusNoShow},
	{"Emily Davis", "emily.d@university.edu", "S67890123", attendance.StatusCheckedIn},
	{"Daniel Wilson", "daniel.w@university.edu", "S78901234", attendance.StatusRegistered},
	{"Olivia Taylor", "olivia.t@university.edu", "S89012345", attendance.StatusCheckedIn},
	{"William Martin", "william.m@university.edu", "S90123456", attendance.StatusRegistered},
	{"Sophia Anderson", "sophia.a@university.edu", "S01234567", attendance.StatusCheckedIn},
	{"James Thomas", "james.t@university.edu", "S11223344", attendance.StatusNoShow},
	{"Emma Garcia", "emma.g@university.edu", "S22334455", attendance.StatusCheckedIn},
	{"Lucas Martinez", "lucas.m@university.edu", "S33445566", attendance.StatusCheckedIn},
	{"Ava Robinson", "ava.r@university.edu", "S44556677", attendance.StatusRegistered},
	{"Noah Clark", "noah.c@university.edu", "S55667788", attendance.StatusCheckedIn},
}

type seedEvent struct {
	title       string
	description string
	category    database.Category
	location    string
	start       time.Duration
	length      time.Duration
	capacity    int
	points      int
}

var seedEvents = []seedEvent{
	{"Tech Innovation Summit", "Learn about the latest trends in technology and innovation.", database.CategoryAcademic, "Main Auditorium", -time.Hour, 4 * time.Hour, 200, 50},
	{"Career Development Workshop", "Polish your resume and practice interviews with recruiters.", database.CategoryCareer, "Business School, Room 203", 2 * 24 * time.Hour, 2 * time.Hour, 40, 30},
	{"AI Research Presentation", "Graduate students present their latest research.", database.CategoryAcademic, "Computer Science Building", 5 * 24 * time.Hour, 90 * time.Minute, 0, 20},
	{"Spring Music Festival", "Annual music festival featuring student bands and performers.", database.CategoryCultural, "Campus Green", 7 * 24 * time.Hour, 6 * time.Hour, 500, 40},
	{"Photography Exhibition", "Works of the campus photography club.", database.CategoryCultural, "Arts Center Gallery", 9 * 24 * time.Hour, 8 * time.Hour, 0, 10},
	{"Basketball Tournament", "Inter-department basketball championship with exciting prizes.", database.CategorySports, "Sports Complex", 12 * 24 * time.Hour, 5 * time.Hour, 120, 40},
}

var seedBadges = []database.Badge{
	{Name: "First Steps", Description: "Attended your first event", PointsRequired: 10},
	{Name: "Regular", Description: "Collected 100 points", PointsRequired: 100},
	{Name: "Campus Star", Description: "Collected 500 points", PointsRequired: 500},
}

// Seed fills the store with demo accounts, events and a roster for the
// ongoing "Tech Innovation Summit". Every seeded account uses SeedPassword.
func Seed(ctx context.Context, s *Store) error {
	now := s.now()

	hash, err := auth.HashPassword(SeedPassword)
	if err != nil {
		return err
	}

	for _, b := range seedBadges {
		b.ID = uuid.NewString()
		b.ImageURL = fmt.Sprintf("https://picsum.photos/seed/%s/100/100", strings.ReplaceAll(strings.ToLower(b.Name), " ", "-"))
		if err = s.InsertBadge(ctx, b); err != nil {
			return err
		}
	}

	organizerID := uuid.NewString()
	if err = s.CreateAccount(ctx, database.NewAccount{
		Profile: database.Profile{
			ID:        organizerID,
			Email:     SeedOrganizerEmail,
			FirstName: "Olivia",
			LastName:  "Organizer",
			UserType:  database.UserTypeOrganizer,
			CreatedAt: now,
			UpdatedAt: now,
		},
		PasswordHash: hash,
		Department:   "Student Affairs",
		Position:     "Events Coordinator",
	}); err != nil {
		return fmt.Errorf("failed to seed organizer: %w", err)
	}

	var eventIDs []string
	for i, e := range seedEvents {
		start := now.Add(e.start).Truncate(time.Minute)
		event := database.Event{
			ID:          uuid.NewString(),
			Title:       e.title,
			Description: e.description,
			Category:    e.category,
			Location:    e.location,
			StartTime:   start,
			EndTime:     start.Add(e.length),
			Points:      e.points,
			ImageURL:    fmt.Sprintf("https://picsum.photos/seed/event%d/400/200", i+1),
			OrganizerID: organizerID,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if e.capacity > 0 {
			event.Capacity = &e.capacity
		}
		if err = s.InsertEvent(ctx, event); err != nil {
			return err
		}
		eventIDs = append(eventIDs, event.ID)
	}

	summitID := eventIDs[0]
	for _, st := range seedStudents {
		firstName, lastName, _ := strings.Cut(st.name, " ")
		studentID := uuid.NewString()
		if err = s.CreateAccount(ctx, database.NewAccount{
			Profile: database.Profile{
				ID:        studentID,
				Email:     st.email,
				FirstName: firstName,
				LastName:  lastName,
				UserType:  database.UserTypeStudent,
				CreatedAt: now,
				UpdatedAt: now,
			},
			PasswordHash:  hash,
			StudentNumber: st.number,
			Program:       "Computer Science",
			Year:          2,
		}); err != nil {
			return fmt.Errorf("failed to seed student %s: %w", st.email, err)
		}

		a, err := s.Register(ctx, summitID, studentID, now)
		if err != nil {
			return fmt.Errorf("failed to seed registration of %s: %w", st.email, err)
		}

		switch st.status {
		case attendance.StatusCheckedIn:
			_, err = s.CheckIn(ctx, summitID, a.ID)
		case attendance.StatusNoShow:
			_, err = s.MarkNoShow(ctx, summitID, a.ID)
		}
		if err != nil {
			return fmt.Errorf("failed to seed attendance of %s: %w", st.email, err)
		}
	}

	return nil
}
