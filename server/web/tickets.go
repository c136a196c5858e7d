package web

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/topi314/campus-events/internal/attendance"
	"github.com/topi314/campus-events/internal/tsync"
	"github.com/topi314/campus-events/internal/xerrors"
	"github.com/topi314/campus-events/server/auth"
	"github.com/topi314/campus-events/server/database"
	"github.com/topi314/campus-events/server/mail"
	"github.com/topi314/campus-events/server/ticket"
)

const maxConcurrentTicketMails = 4

type ticketResponse struct {
	RegistrationID string            `json:"registration_id"`
	EventID        string            `json:"event_id"`
	Status         attendance.Status `json:"status"`
	Token          string            `json:"token"`
}

type sendTicketsResponse struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

// ticketAccess loads a registration together with its event. Only the
// registered student and the event's organizer may see the ticket.
func (h *handler) ticketAccess(w http.ResponseWriter, r *http.Request, session auth.Session) (*database.EventAttendee, *database.EventWithCounts, bool) {
	ctx := r.Context()

	attendee, err := h.DB.GetAttendee(ctx, r.PathValue("registration_id"))
	if err != nil {
		writeError(w, r, err)
		return nil, nil, false
	}

	event, err := h.DB.GetEvent(ctx, attendee.EventID)
	if err != nil {
		writeError(w, r, err)
		return nil, nil, false
	}

	if attendee.StudentID != session.Profile.ID && event.OrganizerID != session.Profile.ID {
		writeError(w, r, errForbidden)
		return nil, nil, false
	}
	return attendee, event, true
}

func (h *handler) Ticket(w http.ResponseWriter, r *http.Request, session auth.Session) {
	attendee, event, ok := h.ticketAccess(w, r, session)
	if !ok {
		return
	}

	token, err := h.Tickets.Sign(event.ID, attendee.ID, event.EndTime)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, ticketResponse{
		RegistrationID: attendee.ID,
		EventID:        event.ID,
		Status:         attendee.Status,
		Token:          token,
	})
}

func (h *handler) TicketImage(w http.ResponseWriter, r *http.Request, session auth.Session) {
	attendee, event, ok := h.ticketAccess(w, r, session)
	if !ok {
		return
	}

	token, err := h.Tickets.Sign(event.ID, attendee.ID, event.EndTime)
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	if err = ticket.WriteQRCode(w, token); err != nil {
		slog.ErrorContext(r.Context(), "Failed to write ticket qr code", slog.String("registration_id", attendee.ID), slog.Any("err", err))
	}
}

func (h *handler) SendTicket(w http.ResponseWriter, r *http.Request, session auth.Session) {
	ctx := r.Context()

	event, ok := h.ownedEvent(w, r, session)
	if !ok {
		return
	}

	attendee, err := h.DB.GetAttendee(ctx, r.PathValue("registration_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if attendee.EventID != event.ID {
		writeError(w, r, attendance.ErrAttendeeNotFound)
		return
	}

	if err = h.sendTicket(ctx, event.Event, attendee.Attendee); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// SendTickets mails the ticket to every attendee that is still registered.
func (h *handler) SendTickets(w http.ResponseWriter, r *http.Request, session auth.Session) {
	ctx := r.Context()

	event, ok := h.ownedEvent(w, r, session)
	if !ok {
		return
	}

	attendees, err := h.DB.GetRoster(ctx, event.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	pending := attendance.Filter{Status: attendance.StatusRegistered}.Apply(attendees)

	eg, egCtx := tsync.ErrorGroupWithContext(ctx)
	eg.SetLimit(maxConcurrentTicketMails)
	for _, a := range pending {
		eg.Go(func() error {
			return h.sendTicket(egCtx, event.Event, a)
		})
	}

	failed := len(xerrors.Unwrap(eg.Wait()))
	if failed > 0 {
		slog.ErrorContext(ctx, "Failed to send some tickets", slog.String("event_id", event.ID), slog.Int("failed", failed))
	}

	writeJSON(w, r, http.StatusOK, sendTicketsResponse{
		Sent:   len(pending) - failed,
		Failed: failed,
	})
}

func (h *handler) sendTicket(ctx context.Context, event database.Event, attendee attendance.Attendee) error {
	token, err := h.Tickets.Sign(event.ID, attendee.ID, event.EndTime)
	if err != nil {
		return err
	}

	buf := &bytes.Buffer{}
	if err = ticket.WriteQRCode(buf, token); err != nil {
		return err
	}

	if err = h.Mailer.Send(ctx, mail.Message{
		ToName:    attendee.Name,
		ToAddress: attendee.Email,
		Subject:   "Your ticket for " + event.Title,
		Text: fmt.Sprintf("Hi %s,\n\nyou are registered for %s.\n\nWhen: %s - %s\nWhere: %s\n\nShow the attached QR code at the entrance to check in.",
			attendee.Name,
			event.Title,
			event.StartTime.Format("Mon, 02 Jan 2006 15:04"),
			event.EndTime.Format("15:04"),
			event.Location,
		),
		Attachments: []mail.Attachment{
			{
				Filename:    "ticket.png",
				ContentType: "image/png",
				Content:     buf.Bytes(),
			},
		},
	}); err != nil {
		return fmt.Errorf("failed to send ticket to %s: %w", attendee.Email, err)
	}
	return nil
}
