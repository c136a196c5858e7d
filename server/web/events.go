package web

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/topi314/campus-events/internal/xquery"
	"github.com/topi314/campus-events/server/auth"
	"github.com/topi314/campus-events/server/database"
	"github.com/topi314/campus-events/server/notify"
)

type eventRequest struct {
	Title       string            `json:"title" validate:"required,notblank,max=200"`
	Description string            `json:"description" validate:"max=5000"`
	Category    database.Category `json:"category" validate:"required,oneof=Academic Cultural Sports Workshops Career"`
	Location    string            `json:"location" validate:"required,notblank,max=200"`
	StartTime   time.Time         `json:"start_time" validate:"required"`
	EndTime     time.Time         `json:"end_time" validate:"required,gtfield=StartTime"`
	Capacity    *int              `json:"capacity" validate:"omitempty,min=1"`
	Points      int               `json:"points" validate:"min=0,max=10000"`
	ImageURL    string            `json:"image_url" validate:"omitempty,url"`
}

type eventResponse struct {
	ID           string            `json:"id"`
	Title        string            `json:"title"`
	Description  string            `json:"description"`
	Category     database.Category `json:"category"`
	Location     string            `json:"location"`
	StartTime    time.Time         `json:"start_time"`
	EndTime      time.Time         `json:"end_time"`
	Capacity     *int              `json:"capacity"`
	Points       int               `json:"points"`
	ImageURL     string            `json:"image_url,omitempty"`
	OrganizerID  string            `json:"organizer_id"`
	Registered   int               `json:"registered"`
	CheckedIn    int               `json:"checked_in"`
	Remaining    *int              `json:"remaining"`
	Ended        bool              `json:"ended"`
	IsRegistered *bool             `json:"is_registered,omitempty"`
}

func newEventResponse(e database.EventWithCounts, now time.Time) eventResponse {
	rs := eventResponse{
		ID:          e.ID,
		Title:       e.Title,
		Description: e.Description,
		Category:    e.Category,
		Location:    e.Location,
		StartTime:   e.StartTime,
		EndTime:     e.EndTime,
		Capacity:    e.Capacity,
		Points:      e.Points,
		ImageURL:    e.ImageURL,
		OrganizerID: e.OrganizerID,
		Registered:  e.Registered,
		CheckedIn:   e.CheckedIn,
		Ended:       e.Ended(now),
	}
	if remaining := e.Remaining(); remaining >= 0 {
		rs.Remaining = &remaining
	}
	return rs
}

func newEventResponses(events []database.EventWithCounts, now time.Time) []eventResponse {
	rs := make([]eventResponse, 0, len(events))
	for _, e := range events {
		rs = append(rs, newEventResponse(e, now))
	}
	return rs
}

func parseCategories(values []string) ([]database.Category, error) {
	categories := make([]database.Category, 0, len(values))
	for _, v := range values {
		if strings.EqualFold(v, "all") {
			return nil, nil
		}
		c, err := database.ParseCategory(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errBadRequest, err)
		}
		categories = append(categories, c)
	}
	return categories, nil
}

func (h *handler) ListEvents(w http.ResponseWriter, r *http.Request, session auth.Session) {
	ctx := r.Context()
	query := r.URL.Query()
	now := time.Now()

	categories, err := parseCategories(xquery.ParseStringSlice(query, "category", nil))
	if err != nil {
		writeError(w, r, err)
		return
	}

	filter := database.EventFilter{
		Categories: categories,
		Search:     xquery.ParseString(query, "q", ""),
		From:       xquery.ParseTime(query, "from", time.Time{}),
		To:         xquery.ParseTime(query, "to", time.Time{}),
		Limit:      xquery.ParseInt(query, "limit", 100, 1, 500),
	}
	if xquery.ParseBool(query, "upcoming", false) && filter.From.Before(now) {
		filter.From = now
	}
	if xquery.ParseBool(query, "mine", false) && session.IsOrganizer() {
		filter.OrganizerID = session.Profile.ID
	}

	events, err := h.DB.GetEvents(ctx, filter)
	if err != nil {
		writeError(w, r, err)
		return
	}

	rs := newEventResponses(events, now)
	if session.IsStudent() {
		registered, err := h.registeredEvents(ctx, session.Profile.ID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		for i := range rs {
			_, ok := registered[rs[i].ID]
			rs[i].IsRegistered = &ok
		}
	}
	writeJSON(w, r, http.StatusOK, rs)
}

func (h *handler) registeredEvents(ctx context.Context, studentID string) (map[string]struct{}, error) {
	registrations, err := h.DB.GetStudentRegistrations(ctx, studentID)
	if err != nil {
		return nil, err
	}
	events := make(map[string]struct{}, len(registrations))
	for _, reg := range registrations {
		events[reg.Event.ID] = struct{}{}
	}
	return events, nil
}

func (h *handler) EventCategories(w http.ResponseWriter, r *http.Request, session auth.Session) {
	query := r.URL.Query()

	var organizerID string
	if xquery.ParseBool(query, "mine", false) && session.IsOrganizer() {
		organizerID = session.Profile.ID
	}

	counts, err := h.DB.GetCategoryCounts(r.Context(), organizerID, xquery.ParseTime(query, "from", time.Time{}))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if counts == nil {
		counts = []database.CategoryCount{}
	}
	writeJSON(w, r, http.StatusOK, counts)
}

func (h *handler) GetEvent(w http.ResponseWriter, r *http.Request, session auth.Session) {
	ctx := r.Context()

	event, err := h.DB.GetEvent(ctx, r.PathValue("event_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	rs := newEventResponse(*event, time.Now())
	if session.IsStudent() {
		registered, err := h.registeredEvents(ctx, session.Profile.ID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		_, ok := registered[event.ID]
		rs.IsRegistered = &ok
	}
	writeJSON(w, r, http.StatusOK, rs)
}

func (h *handler) CreateEvent(w http.ResponseWriter, r *http.Request, session auth.Session) {
	ctx := r.Context()

	var rq eventRequest
	if err := decodeJSON(r, &rq); err != nil {
		writeError(w, r, err)
		return
	}

	now := time.Now()
	event := database.Event{
		ID:          uuid.NewString(),
		Title:       strings.TrimSpace(rq.Title),
		Description: rq.Description,
		Category:    rq.Category,
		Location:    strings.TrimSpace(rq.Location),
		StartTime:   rq.StartTime,
		EndTime:     rq.EndTime,
		Capacity:    rq.Capacity,
		Points:      rq.Points,
		ImageURL:    rq.ImageURL,
		OrganizerID: session.Profile.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := h.DB.InsertEvent(ctx, event); err != nil {
		writeError(w, r, err)
		return
	}

	slog.InfoContext(ctx, "Event created", slog.String("event_id", event.ID), slog.String("organizer_id", event.OrganizerID))
	h.SendNotification(ctx, fmt.Sprintf("📅 New event **%s** (%s) at %s, %s", event.Title, event.Category, event.Location, notify.Timestamp(event.StartTime)))

	writeJSON(w, r, http.StatusCreated, newEventResponse(database.EventWithCounts{Event: event}, now))
}

func (h *handler) UpdateEvent(w http.ResponseWriter, r *http.Request, session auth.Session) {
	ctx := r.Context()

	event, ok := h.ownedEvent(w, r, session)
	if !ok {
		return
	}

	var rq eventRequest
	if err := decodeJSON(r, &rq); err != nil {
		writeError(w, r, err)
		return
	}

	if rq.Capacity != nil && *rq.Capacity < event.Registered {
		writeError(w, r, fmt.Errorf("%w: capacity cannot be lower than the %d registered attendees", errBadRequest, event.Registered))
		return
	}

	now := time.Now()
	event.Title = strings.TrimSpace(rq.Title)
	event.Description = rq.Description
	event.Category = rq.Category
	event.Location = strings.TrimSpace(rq.Location)
	event.StartTime = rq.StartTime
	event.EndTime = rq.EndTime
	event.Capacity = rq.Capacity
	event.Points = rq.Points
	event.ImageURL = rq.ImageURL
	event.UpdatedAt = now

	if err := h.DB.UpdateEvent(ctx, event.Event); err != nil {
		writeError(w, r, err)
		return
	}

	slog.InfoContext(ctx, "Event updated", slog.String("event_id", event.ID))
	writeJSON(w, r, http.StatusOK, newEventResponse(*event, now))
}

func (h *handler) RegisterForEvent(w http.ResponseWriter, r *http.Request, session auth.Session) {
	ctx := r.Context()
	eventID := r.PathValue("event_id")

	attendee, err := h.DB.Register(ctx, eventID, session.Profile.ID, time.Now())
	if err != nil {
		writeError(w, r, err)
		return
	}

	slog.InfoContext(ctx, "Student registered", slog.String("event_id", eventID), slog.String("registration_id", attendee.ID))

	if event, err := h.DB.GetEvent(ctx, eventID); err != nil {
		slog.ErrorContext(ctx, "Failed to get event after registration", slog.String("event_id", eventID), slog.Any("err", err))
	} else if event.Capacity != nil && event.Remaining() == 0 {
		h.SendNotification(ctx, fmt.Sprintf("🎟️ **%s** is now full with %d registrations", event.Title, event.Registered))
	}

	writeJSON(w, r, http.StatusCreated, attendee)
}

// ownedEvent loads the event of the request path and makes sure it belongs to
// the calling organizer.
func (h *handler) ownedEvent(w http.ResponseWriter, r *http.Request, session auth.Session) (*database.EventWithCounts, bool) {
	event, err := h.DB.GetEvent(r.Context(), r.PathValue("event_id"))
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}
	if event.OrganizerID != session.Profile.ID {
		writeError(w, r, errForbidden)
		return nil, false
	}
	return event, true
}
