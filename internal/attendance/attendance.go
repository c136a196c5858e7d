package attendance

import (
	"errors"
	"fmt"
	"time"
)

type Status string

const (
	StatusRegistered Status = "registered"
	StatusCheckedIn  Status = "checked-in"
	StatusNoShow     Status = "no-show"
)

var (
	ErrAttendeeNotFound  = errors.New("attendee not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidStatus     = errors.New("invalid status")
)

func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusRegistered, StatusCheckedIn, StatusNoShow:
		return Status(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

// StatusFromAttended maps the nullable attended column to a status.
func StatusFromAttended(attended *bool) Status {
	switch {
	case attended == nil:
		return StatusRegistered
	case *attended:
		return StatusCheckedIn
	default:
		return StatusNoShow
	}
}

// Attended is the inverse of StatusFromAttended.
func (s Status) Attended() *bool {
	switch s {
	case StatusCheckedIn:
		v := true
		return &v
	case StatusNoShow:
		v := false
		return &v
	default:
		return nil
	}
}

type Attendee struct {
	ID            string     `json:"id"`
	StudentID     string     `json:"student_id"`
	Name          string     `json:"name"`
	Email         string     `json:"email"`
	StudentNumber string     `json:"student_number"`
	RegisteredAt  time.Time  `json:"registered_at"`
	Status        Status     `json:"status"`
	PointsAwarded bool       `json:"points_awarded"`
	Points        int        `json:"points"`
	CheckedInAt   *time.Time `json:"checked_in_at,omitempty"`
}

// CheckIn moves the attendee to checked-in and awards points.
// It reports whether anything changed; a second call is a no-op.
func (a *Attendee) CheckIn(now time.Time, points int) bool {
	if a.Status == StatusCheckedIn {
		return false
	}
	a.Status = StatusCheckedIn
	a.PointsAwarded = true
	a.Points = points
	a.CheckedInAt = &now
	return true
}

// MarkNoShow is only allowed while the attendee is still registered.
func (a *Attendee) MarkNoShow() (bool, error) {
	switch a.Status {
	case StatusNoShow:
		return false, nil
	case StatusRegistered:
		a.Status = StatusNoShow
		a.PointsAwarded = false
		a.Points = 0
		a.CheckedInAt = nil
		return true, nil
	default:
		return false, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, a.Status, StatusNoShow)
	}
}

// Valid checks that points are only held by checked-in attendees.
func (a Attendee) Valid() bool {
	if a.PointsAwarded || a.Points != 0 {
		return a.Status == StatusCheckedIn
	}
	return true
}
