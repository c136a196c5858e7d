package web

import (
	"context"
	"errors"
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

type scanRequest struct {
	Token         string `json:"token" validate:"required_without=StudentNumber"`
	StudentNumber string `json:"student_number" validate:"required_without=Token,omitempty,alphanum,max=20"`
}

type scanResponse struct {
	attendanceResponse
	Message string `json:"message"`
}

type scanEntry struct {
	ID             string    `json:"id"`
	RegistrationID *string   `json:"registration_id"`
	Name           string    `json:"name,omitempty"`
	Email          string    `json:"email,omitempty"`
	ScannedAt      time.Time `json:"scanned_at"`
	Success        bool      `json:"success"`
	Message        string    `json:"message"`
}

// Scan checks in the attendee of a scanned ticket or of a manually entered
// student number. Every attempt ends up in the scan history.
func (h *handler) Scan(w http.ResponseWriter, r *http.Request, session auth.Session) {
	ctx := r.Context()

	event, ok := h.ownedEvent(w, r, session)
	if !ok {
		return
	}

	var rq scanRequest
	if err := decodeJSON(r, &rq); err != nil {
		h.recordScan(ctx, event.ID, "", session.Profile.ID, false, "invalid scan request")
		writeError(w, r, err)
		return
	}

	registrationID, err := h.resolveScan(ctx, event.Event, rq)
	if err != nil {
		h.recordScan(ctx, event.ID, registrationID, session.Profile.ID, false, err.Error())
		writeError(w, r, err)
		return
	}

	result, err := h.DB.CheckIn(ctx, event.ID, registrationID)
	if err != nil {
		h.recordScan(ctx, event.ID, registrationID, session.Profile.ID, false, err.Error())
		writeError(w, r, err)
		return
	}

	message := result.Attendee.Name + " checked in"
	if !result.Changed {
		message = result.Attendee.Name + " was already checked in"
	}
	h.recordScan(ctx, event.ID, registrationID, session.Profile.ID, true, message)

	slog.InfoContext(ctx, "Ticket scanned",
		slog.String("event_id", event.ID),
		slog.String("registration_id", registrationID),
		slog.Bool("changed", result.Changed),
	)
	writeJSON(w, r, http.StatusOK, scanResponse{
		attendanceResponse: newAttendanceResponse(result),
		Message:            message,
	})
}

func (h *handler) resolveScan(ctx context.Context, event database.Event, rq scanRequest) (string, error) {
	if rq.Token != "" {
		return h.Tickets.Verify(rq.Token, event.ID)
	}

	attendees, err := h.DB.GetRoster(ctx, event.ID)
	if err != nil {
		return "", err
	}
	attendee, ok := attendance.NewRoster(event.ID, event.Points, attendees).FindByStudentNumber(strings.TrimSpace(rq.StudentNumber))
	if !ok {
		return "", attendance.ErrAttendeeNotFound
	}
	return attendee.ID, nil
}

func (h *handler) recordScan(ctx context.Context, eventID string, registrationID string, scannedBy string, success bool, message string) {
	scan := database.Scan{
		ID:        uuid.NewString(),
		EventID:   eventID,
		ScannedBy: scannedBy,
		ScannedAt: time.Now(),
		Success:   success,
		Message:   message,
	}
	if registrationID != "" {
		scan.RegistrationID = &registrationID
	}
	if err := h.DB.InsertScan(ctx, scan); err != nil && !errors.Is(err, context.Canceled) {
		slog.ErrorContext(ctx, "Failed to record scan", slog.String("event_id", eventID), slog.Any("err", err))
	}
}

func (h *handler) Scans(w http.ResponseWriter, r *http.Request, session auth.Session) {
	event, ok := h.ownedEvent(w, r, session)
	if !ok {
		return
	}

	scans, err := h.DB.GetScans(r.Context(), event.ID, xquery.ParseInt(r.URL.Query(), "limit", 50, 1, 500))
	if err != nil {
		writeError(w, r, err)
		return
	}

	rs := make([]scanEntry, 0, len(scans))
	for _, s := range scans {
		rs = append(rs, scanEntry{
			ID:             s.ID,
			RegistrationID: s.RegistrationID,
			Name:           s.Name,
			Email:          s.Email,
			ScannedAt:      s.ScannedAt,
			Success:        s.Success,
			Message:        s.Message,
		})
	}
	writeJSON(w, r, http.StatusOK, rs)
}
