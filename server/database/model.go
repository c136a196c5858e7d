package database

import (
	"fmt"
	"time"

	"github.com/topi314/campus-events/internal/attendance"
)

type UserType string

const (
	UserTypeStudent   UserType = "student"
	UserTypeOrganizer UserType = "organizer"
)

func ParseUserType(s string) (UserType, error) {
	switch UserType(s) {
	case UserTypeStudent, UserTypeOrganizer:
		return UserType(s), nil
	}
	return "", fmt.Errorf("invalid user type %q", s)
}

type Category string

const (
	CategoryAcademic  Category = "Academic"
	CategoryCultural  Category = "Cultural"
	CategorySports    Category = "Sports"
	CategoryWorkshops Category = "Workshops"
	CategoryCareer    Category = "Career"
)

var Categories = []Category{
	CategoryAcademic,
	CategoryCultural,
	CategorySports,
	CategoryWorkshops,
	CategoryCareer,
}

func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("invalid event category %q", s)
}

type Profile struct {
	ID        string    `db:"id"`
	Email     string    `db:"email"`
	FirstName string    `db:"first_name"`
	LastName  string    `db:"last_name"`
	AvatarURL string    `db:"avatar_url"`
	UserType  UserType  `db:"user_type"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (p Profile) Name() string {
	return p.FirstName + " " + p.LastName
}

type Student struct {
	Profile
	Program       string `db:"program"`
	Year          int    `db:"year"`
	TotalPoints   int    `db:"total_points"`
	StudentNumber string `db:"student_number"`
}

type Organizer struct {
	Profile
	Department string `db:"department"`
	Position   string `db:"position"`
}

// NewAccount creates a profile together with its student or organizer row.
type NewAccount struct {
	Profile       Profile
	PasswordHash  []byte
	StudentNumber string
	Program       string
	Year          int
	Department    string
	Position      string
}

type Credentials struct {
	ProfileID    string   `db:"id"`
	UserType     UserType `db:"user_type"`
	PasswordHash []byte   `db:"password_hash"`
}

type Session struct {
	ID        string    `db:"session_id"`
	ProfileID string    `db:"session_profile_id"`
	CreatedAt time.Time `db:"session_created_at"`
	ExpiresAt time.Time `db:"session_expires_at"`
}

type PasswordReset struct {
	Token     string     `db:"password_reset_token"`
	ProfileID string     `db:"password_reset_profile_id"`
	ExpiresAt time.Time  `db:"password_reset_expires_at"`
	UsedAt    *time.Time `db:"password_reset_used_at"`
}

type Event struct {
	ID          string    `db:"id"`
	Title       string    `db:"title"`
	Description string    `db:"description"`
	Category    Category  `db:"category"`
	Location    string    `db:"location"`
	StartTime   time.Time `db:"start_time"`
	EndTime     time.Time `db:"end_time"`
	Capacity    *int      `db:"capacity"`
	Points      int       `db:"points"`
	ImageURL    string    `db:"image_url"`
	OrganizerID string    `db:"organizer_id"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (e Event) Ended(now time.Time) bool {
	return !e.EndTime.After(now)
}

type EventWithCounts struct {
	Event
	Registered int `db:"registered"`
	CheckedIn  int `db:"checked_in"`
}

// Remaining is the number of free places, or -1 when the event is unlimited.
func (e EventWithCounts) Remaining() int {
	if e.Capacity == nil {
		return -1
	}
	return max(*e.Capacity-e.Registered, 0)
}

type EventFilter struct {
	OrganizerID string
	Categories  []Category
	Search      string
	From        time.Time
	To          time.Time
	Limit       int
}

type CategoryCount struct {
	Category Category `db:"category"`
	Count    int      `db:"count"`
}

type MonthlyCount struct {
	Month     time.Time `db:"month"`
	Events    int       `db:"events"`
	Attendees int       `db:"attendees"`
}

// EventAttendee is a registration together with the event it belongs to.
type EventAttendee struct {
	EventID string
	attendance.Attendee
}

type StudentRegistration struct {
	Event    Event
	Attendee attendance.Attendee
}

type AttendanceResult struct {
	Attendee    attendance.Attendee
	Changed     bool
	PointsAdded int
	TotalPoints int
	NewBadges   []Badge
}

type Badge struct {
	ID             string `db:"id"`
	Name           string `db:"name"`
	Description    string `db:"description"`
	ImageURL       string `db:"image_url"`
	PointsRequired int    `db:"points_required"`
}

type EarnedBadge struct {
	Badge
	EarnedAt time.Time `db:"earned_at"`
}

type Scan struct {
	ID             string    `db:"scan_id"`
	EventID        string    `db:"scan_event_id"`
	RegistrationID *string   `db:"scan_registration_id"`
	ScannedBy      string    `db:"scan_scanned_by"`
	ScannedAt      time.Time `db:"scan_scanned_at"`
	Success        bool      `db:"scan_success"`
	Message        string    `db:"scan_message"`
}

type ScanWithAttendee struct {
	Scan
	Name  string `db:"name"`
	Email string `db:"email"`
}

type LeaderboardEntry struct {
	StudentID   string `db:"id"`
	FirstName   string `db:"first_name"`
	LastName    string `db:"last_name"`
	AvatarURL   string `db:"avatar_url"`
	TotalPoints int    `db:"total_points"`
	Rank        int    `db:"rank"`
}

// EligibleBadges returns the badges reached with total points that are not
// part of earned yet.
func EligibleBadges(total int, badges []Badge, earned map[string]struct{}) []Badge {
	var eligible []Badge
	for _, b := range badges {
		if b.PointsRequired > total {
			continue
		}
		if _, ok := earned[b.ID]; ok {
			continue
		}
		eligible = append(eligible, b)
	}
	return eligible
}
