package web

import (
	"net/http"
	"time"

	"github.com/topi314/campus-events/internal/attendance"
	"github.com/topi314/campus-events/internal/tsync"
	"github.com/topi314/campus-events/internal/xtime"
	"github.com/topi314/campus-events/server/auth"
	"github.com/topi314/campus-events/server/database"
)

const (
	studentDashboardMonths   = 12
	organizerDashboardMonths = 6
	dashboardUpcomingEvents  = 5
)

type monthlyEntry struct {
	Month     string `json:"month"`
	Events    int    `json:"events"`
	Attendees int    `json:"attendees"`
}

type badgeResponse struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Description    string     `json:"description"`
	ImageURL       string     `json:"image_url,omitempty"`
	PointsRequired int        `json:"points_required"`
	EarnedAt       *time.Time `json:"earned_at,omitempty"`
}

type studentDashboardResponse struct {
	TotalPoints    int                    `json:"total_points"`
	Rank           int                    `json:"rank"`
	AttendedEvents int                    `json:"attended_events"`
	Upcoming       []registrationResponse `json:"upcoming"`
	Badges         []badgeResponse        `json:"badges"`
	Monthly        []monthlyEntry         `json:"monthly"`
}

type organizerDashboardResponse struct {
	TotalEvents        int                      `json:"total_events"`
	TotalRegistrations int                      `json:"total_registrations"`
	TotalCheckedIn     int                      `json:"total_checked_in"`
	AttendanceRate     float64                  `json:"attendance_rate"`
	Upcoming           []eventResponse          `json:"upcoming"`
	Categories         []database.CategoryCount `json:"categories"`
	Monthly            []monthlyEntry           `json:"monthly"`
}

// monthlySeries returns one entry per month, filling months without data
// with zeros.
func monthlySeries(now time.Time, n int, counts []database.MonthlyCount) []monthlyEntry {
	byMonth := make(map[string]database.MonthlyCount, len(counts))
	for _, c := range counts {
		byMonth[xtime.MonthKey(c.Month)] = c
	}

	months := xtime.LastMonths(now, n)
	series := make([]monthlyEntry, 0, len(months))
	for _, m := range months {
		key := xtime.MonthKey(m)
		c := byMonth[key]
		series = append(series, monthlyEntry{
			Month:     key,
			Events:    c.Events,
			Attendees: c.Attendees,
		})
	}
	return series
}

func (h *handler) StudentDashboard(w http.ResponseWriter, r *http.Request, session auth.Session) {
	now := time.Now()
	studentID := session.Profile.ID

	var (
		student       *database.Student
		rank          int
		registrations []database.StudentRegistration
		badges        []database.EarnedBadge
		monthly       []database.MonthlyCount
	)

	eg, ctx := tsync.ErrorGroupWithContext(r.Context())
	eg.Go(func() error {
		var err error
		student, err = h.DB.GetStudent(ctx, studentID)
		return err
	})
	eg.Go(func() error {
		var err error
		rank, err = h.DB.GetStudentRank(ctx, studentID)
		return err
	})
	eg.Go(func() error {
		var err error
		registrations, err = h.DB.GetStudentRegistrations(ctx, studentID)
		return err
	})
	eg.Go(func() error {
		var err error
		badges, err = h.DB.GetStudentBadges(ctx, studentID)
		return err
	})
	eg.Go(func() error {
		from := xtime.LastMonths(now, studentDashboardMonths)[0]
		var err error
		monthly, err = h.DB.GetStudentMonthlyCounts(ctx, studentID, from)
		return err
	})
	if err := eg.Wait(); err != nil {
		writeError(w, r, err)
		return
	}

	rs := studentDashboardResponse{
		TotalPoints: student.TotalPoints,
		Rank:        rank,
		Upcoming:    make([]registrationResponse, 0),
		Badges:      make([]badgeResponse, 0, len(badges)),
		Monthly:     monthlySeries(now, studentDashboardMonths, monthly),
	}
	for _, reg := range registrations {
		if reg.Attendee.Status == attendance.StatusCheckedIn {
			rs.AttendedEvents++
		}
		if !reg.Event.Ended(now) {
			rs.Upcoming = append(rs.Upcoming, newRegistrationResponse(reg, now))
		}
	}
	for _, b := range badges {
		earnedAt := b.EarnedAt
		rs.Badges = append(rs.Badges, newBadgeResponse(b.Badge, &earnedAt))
	}

	writeJSON(w, r, http.StatusOK, rs)
}

func (h *handler) OrganizerDashboard(w http.ResponseWriter, r *http.Request, session auth.Session) {
	now := time.Now()
	organizerID := session.Profile.ID

	var (
		events     []database.EventWithCounts
		categories []database.CategoryCount
		monthly    []database.MonthlyCount
	)

	eg, ctx := tsync.ErrorGroupWithContext(r.Context())
	eg.Go(func() error {
		var err error
		events, err = h.DB.GetEvents(ctx, database.EventFilter{OrganizerID: organizerID})
		return err
	})
	eg.Go(func() error {
		var err error
		categories, err = h.DB.GetCategoryCounts(ctx, organizerID, time.Time{})
		return err
	})
	eg.Go(func() error {
		from := xtime.LastMonths(now, organizerDashboardMonths)[0]
		var err error
		monthly, err = h.DB.GetOrganizerMonthlyCounts(ctx, organizerID, from)
		return err
	})
	if err := eg.Wait(); err != nil {
		writeError(w, r, err)
		return
	}

	rs := organizerDashboardResponse{
		TotalEvents: len(events),
		Upcoming:    make([]eventResponse, 0, dashboardUpcomingEvents),
		Categories:  categories,
		Monthly:     monthlySeries(now, organizerDashboardMonths, monthly),
	}
	if rs.Categories == nil {
		rs.Categories = []database.CategoryCount{}
	}
	for _, e := range events {
		rs.TotalRegistrations += e.Registered
		rs.TotalCheckedIn += e.CheckedIn
		if e.StartTime.After(now) && len(rs.Upcoming) < dashboardUpcomingEvents {
			rs.Upcoming = append(rs.Upcoming, newEventResponse(e, now))
		}
	}
	if rs.TotalRegistrations > 0 {
		rs.AttendanceRate = float64(rs.TotalCheckedIn) / float64(rs.TotalRegistrations)
	}

	writeJSON(w, r, http.StatusOK, rs)
}
