package web

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/topi314/campus-events/internal/attendance"
	"github.com/topi314/campus-events/server/auth"
	"github.com/topi314/campus-events/server/database"
)

type attendeesResponse struct {
	Attendees []attendance.Attendee `json:"attendees"`
	Counts    attendance.Counts     `json:"counts"`
}

type addAttendeeRequest struct {
	FirstName     string `json:"first_name" validate:"required,notblank,max=100"`
	LastName      string `json:"last_name" validate:"required,notblank,max=100"`
	Email         string `json:"email" validate:"required,email"`
	StudentNumber string `json:"student_number" validate:"required,alphanum,max=20"`
}

type attendanceResponse struct {
	Attendee    attendance.Attendee `json:"attendee"`
	Changed     bool                `json:"changed"`
	PointsAdded int                 `json:"points_added"`
	TotalPoints int                 `json:"total_points"`
	NewBadges   []database.Badge    `json:"new_badges"`
}

func newAttendanceResponse(result *database.AttendanceResult) attendanceResponse {
	badges := result.NewBadges
	if badges == nil {
		badges = []database.Badge{}
	}
	return attendanceResponse{
		Attendee:    result.Attendee,
		Changed:     result.Changed,
		PointsAdded: result.PointsAdded,
		TotalPoints: result.TotalPoints,
		NewBadges:   badges,
	}
}

func (h *handler) ListAttendees(w http.ResponseWriter, r *http.Request, session auth.Session) {
	event, ok := h.ownedEvent(w, r, session)
	if !ok {
		return
	}

	query := r.URL.Query()
	filter, err := attendance.ParseFilter(query.Get("q"), query.Get("status"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	attendees, err := h.DB.GetRoster(r.Context(), event.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	roster := attendance.NewRoster(event.ID, event.Points, attendees)
	writeJSON(w, r, http.StatusOK, attendeesResponse{
		Attendees: roster.Filter(filter),
		Counts:    roster.Counts(),
	})
}

func (h *handler) AddAttendee(w http.ResponseWriter, r *http.Request, session auth.Session) {
	ctx := r.Context()

	event, ok := h.ownedEvent(w, r, session)
	if !ok {
		return
	}

	var rq addAttendeeRequest
	if err := decodeJSON(r, &rq); err != nil {
		writeError(w, r, err)
		return
	}

	attendee, err := h.DB.AddAttendee(ctx, event.ID, attendance.Details{
		FirstName:     strings.TrimSpace(rq.FirstName),
		LastName:      strings.TrimSpace(rq.LastName),
		Email:         strings.TrimSpace(rq.Email),
		StudentNumber: strings.ToUpper(rq.StudentNumber),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	slog.InfoContext(ctx, "Attendee added", slog.String("event_id", event.ID), slog.String("registration_id", attendee.ID))
	writeJSON(w, r, http.StatusCreated, attendee)
}

func (h *handler) CheckInAttendee(w http.ResponseWriter, r *http.Request, session auth.Session) {
	h.updateAttendance(w, r, session, attendance.StatusCheckedIn)
}

func (h *handler) MarkNoShow(w http.ResponseWriter, r *http.Request, session auth.Session) {
	h.updateAttendance(w, r, session, attendance.StatusNoShow)
}

func (h *handler) updateAttendance(w http.ResponseWriter, r *http.Request, session auth.Session, status attendance.Status) {
	ctx := r.Context()

	event, ok := h.ownedEvent(w, r, session)
	if !ok {
		return
	}
	registrationID := r.PathValue("registration_id")

	var (
		result *database.AttendanceResult
		err    error
	)
	if status == attendance.StatusCheckedIn {
		result, err = h.DB.CheckIn(ctx, event.ID, registrationID)
	} else {
		result, err = h.DB.MarkNoShow(ctx, event.ID, registrationID)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	if result.Changed {
		slog.InfoContext(ctx, "Attendance updated",
			slog.String("event_id", event.ID),
			slog.String("registration_id", registrationID),
			slog.String("status", string(result.Attendee.Status)),
			slog.Int("points_added", result.PointsAdded),
		)
	}
	writeJSON(w, r, http.StatusOK, newAttendanceResponse(result))
}

func (h *handler) ExportAttendees(w http.ResponseWriter, r *http.Request, session auth.Session) {
	ctx := r.Context()

	event, ok := h.ownedEvent(w, r, session)
	if !ok {
		return
	}

	query := r.URL.Query()
	filter, err := attendance.ParseFilter(query.Get("q"), query.Get("status"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	attendees, err := h.DB.GetRoster(ctx, event.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.csv"`, exportFileName(event.Title)))

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"Name", "Email", "Student ID", "Registration Date", "Status", "Points"})
	for _, a := range filter.Apply(attendees) {
		_ = cw.Write([]string{
			a.Name,
			a.Email,
			a.StudentNumber,
			a.RegisteredAt.Format(time.DateOnly),
			string(a.Status),
			strconv.Itoa(a.Points),
		})
	}
	cw.Flush()
	if err = cw.Error(); err != nil {
		slog.ErrorContext(ctx, "Failed to write attendee export", slog.String("event_id", event.ID), slog.Any("err", err))
	}
}

func exportFileName(title string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '-'
		}
	}, title)
	name = strings.Trim(name, "-")
	if name == "" {
		name = "event"
	}
	return name + "-attendees"
}
