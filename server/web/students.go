package web

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/topi314/campus-events/internal/attendance"
	"github.com/topi314/campus-events/internal/xquery"
	"github.com/topi314/campus-events/server/auth"
	"github.com/topi314/campus-events/server/database"
)

type registrationEvent struct {
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	Category  database.Category `json:"category"`
	Location  string            `json:"location"`
	StartTime time.Time         `json:"start_time"`
	EndTime   time.Time         `json:"end_time"`
	Points    int               `json:"points"`
	Ended     bool              `json:"ended"`
}

type registrationResponse struct {
	ID            string            `json:"id"`
	Status        attendance.Status `json:"status"`
	RegisteredAt  time.Time         `json:"registered_at"`
	CheckedInAt   *time.Time        `json:"checked_in_at,omitempty"`
	PointsAwarded bool              `json:"points_awarded"`
	Points        int               `json:"points"`
	Event         registrationEvent `json:"event"`
}

func newRegistrationResponse(reg database.StudentRegistration, now time.Time) registrationResponse {
	return registrationResponse{
		ID:            reg.Attendee.ID,
		Status:        reg.Attendee.Status,
		RegisteredAt:  reg.Attendee.RegisteredAt,
		CheckedInAt:   reg.Attendee.CheckedInAt,
		PointsAwarded: reg.Attendee.PointsAwarded,
		Points:        reg.Attendee.Points,
		Event: registrationEvent{
			ID:        reg.Event.ID,
			Title:     reg.Event.Title,
			Category:  reg.Event.Category,
			Location:  reg.Event.Location,
			StartTime: reg.Event.StartTime,
			EndTime:   reg.Event.EndTime,
			Points:    reg.Event.Points,
			Ended:     reg.Event.Ended(now),
		},
	}
}

func newBadgeResponse(b database.Badge, earnedAt *time.Time) badgeResponse {
	return badgeResponse{
		ID:             b.ID,
		Name:           b.Name,
		Description:    b.Description,
		ImageURL:       b.ImageURL,
		PointsRequired: b.PointsRequired,
		EarnedAt:       earnedAt,
	}
}

type badgeRequest struct {
	Name           string `json:"name" validate:"required,notblank,max=100"`
	Description    string `json:"description" validate:"max=500"`
	ImageURL       string `json:"image_url" validate:"omitempty,url"`
	PointsRequired int    `json:"points_required" validate:"min=0"`
}

func (h *handler) Registrations(w http.ResponseWriter, r *http.Request, session auth.Session) {
	registrations, err := h.DB.GetStudentRegistrations(r.Context(), session.Profile.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	query := r.URL.Query()
	filter, err := attendance.ParseFilter("", query.Get("status"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	upcoming := xquery.ParseBool(query, "upcoming", false)

	now := time.Now()
	rs := make([]registrationResponse, 0, len(registrations))
	for _, reg := range registrations {
		if !filter.Match(reg.Attendee) || (upcoming && reg.Event.Ended(now)) {
			continue
		}
		rs = append(rs, newRegistrationResponse(reg, now))
	}
	writeJSON(w, r, http.StatusOK, rs)
}

func (h *handler) Leaderboard(w http.ResponseWriter, r *http.Request, _ auth.Session) {
	entries, err := h.DB.GetLeaderboard(r.Context(), xquery.ParseInt(r.URL.Query(), "limit", 10, 1, 100))
	if err != nil {
		writeError(w, r, err)
		return
	}

	type leaderboardEntry struct {
		StudentID   string `json:"student_id"`
		Name        string `json:"name"`
		AvatarURL   string `json:"avatar_url,omitempty"`
		TotalPoints int    `json:"total_points"`
		Rank        int    `json:"rank"`
	}

	rs := make([]leaderboardEntry, 0, len(entries))
	for _, e := range entries {
		rs = append(rs, leaderboardEntry{
			StudentID:   e.StudentID,
			Name:        e.FirstName + " " + e.LastName,
			AvatarURL:   e.AvatarURL,
			TotalPoints: e.TotalPoints,
			Rank:        e.Rank,
		})
	}
	writeJSON(w, r, http.StatusOK, rs)
}

func (h *handler) Badges(w http.ResponseWriter, r *http.Request, _ auth.Session) {
	badges, err := h.DB.GetBadges(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	rs := make([]badgeResponse, 0, len(badges))
	for _, b := range badges {
		rs = append(rs, newBadgeResponse(b, nil))
	}
	writeJSON(w, r, http.StatusOK, rs)
}

func (h *handler) CreateBadge(w http.ResponseWriter, r *http.Request, _ auth.Session) {
	ctx := r.Context()

	var rq badgeRequest
	if err := decodeJSON(r, &rq); err != nil {
		writeError(w, r, err)
		return
	}

	badge := database.Badge{
		ID:             uuid.NewString(),
		Name:           strings.TrimSpace(rq.Name),
		Description:    rq.Description,
		ImageURL:       rq.ImageURL,
		PointsRequired: rq.PointsRequired,
	}
	if err := h.DB.InsertBadge(ctx, badge); err != nil {
		writeError(w, r, err)
		return
	}

	slog.InfoContext(ctx, "Badge created", slog.String("badge_id", badge.ID), slog.Int("points_required", badge.PointsRequired))
	writeJSON(w, r, http.StatusCreated, newBadgeResponse(badge, nil))
}
