package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/topi314/campus-events/internal/middlewares"
	"github.com/topi314/campus-events/server"
)

type handler struct {
	*server.Server
}

func Routes(srv *server.Server) http.Handler {
	h := &handler{
		Server: srv,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.Health)

	mux.HandleFunc("POST /signup", h.Signup)
	mux.HandleFunc("POST /login", h.Login)
	mux.HandleFunc("POST /logout", h.requireAuth(h.Logout))
	mux.HandleFunc("POST /forgot-password", h.ForgotPassword)
	mux.HandleFunc("POST /reset-password", h.ResetPassword)
	mux.HandleFunc("GET  /login/google", h.GoogleLogin)
	mux.HandleFunc("GET  /login/callback", h.GoogleCallback)
	mux.HandleFunc("GET  /me", h.requireAuth(h.Me))

	mux.HandleFunc("GET  /events", h.requireAuth(h.ListEvents))
	mux.HandleFunc("GET  /events/categories", h.requireAuth(h.EventCategories))
	mux.HandleFunc("POST /events", h.requireOrganizer(h.CreateEvent))
	mux.HandleFunc("GET  /events/{event_id}", h.requireAuth(h.GetEvent))
	mux.HandleFunc("PUT  /events/{event_id}", h.requireOrganizer(h.UpdateEvent))
	mux.HandleFunc("POST /events/{event_id}/register", h.requireStudent(h.RegisterForEvent))

	mux.HandleFunc("GET  /events/{event_id}/attendees", h.requireOrganizer(h.ListAttendees))
	mux.HandleFunc("POST /events/{event_id}/attendees", h.requireOrganizer(h.AddAttendee))
	mux.HandleFunc("GET  /events/{event_id}/attendees/export", h.requireOrganizer(h.ExportAttendees))
	mux.HandleFunc("POST /events/{event_id}/attendees/{registration_id}/check-in", h.requireOrganizer(h.CheckInAttendee))
	mux.HandleFunc("POST /events/{event_id}/attendees/{registration_id}/no-show", h.requireOrganizer(h.MarkNoShow))
	mux.HandleFunc("POST /events/{event_id}/attendees/{registration_id}/ticket/send", h.requireOrganizer(h.SendTicket))
	mux.HandleFunc("POST /events/{event_id}/tickets/send", h.requireOrganizer(h.SendTickets))

	mux.HandleFunc("POST /events/{event_id}/scan", h.requireOrganizer(h.Scan))
	mux.HandleFunc("GET  /events/{event_id}/scans", h.requireOrganizer(h.Scans))

	mux.HandleFunc("GET  /registrations", h.requireStudent(h.Registrations))
	mux.HandleFunc("GET  /registrations/{registration_id}/ticket", h.requireAuth(h.Ticket))
	mux.Handle("GET  /registrations/{registration_id}/ticket.png", middlewares.Cache(time.Hour, h.requireAuth(h.TicketImage)))

	mux.HandleFunc("GET  /calendar", h.requireAuth(h.Calendar))
	mux.HandleFunc("GET  /dashboard/student", h.requireStudent(h.StudentDashboard))
	mux.HandleFunc("GET  /dashboard/organizer", h.requireOrganizer(h.OrganizerDashboard))
	mux.HandleFunc("GET  /leaderboard", h.requireAuth(h.Leaderboard))
	mux.HandleFunc("GET  /badges", h.requireAuth(h.Badges))
	mux.HandleFunc("POST /badges", h.requireOrganizer(h.CreateBadge))

	return cleanPath(logRequests(h.auth(mux)))
}

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

func (h *handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.DB.Ping(ctx); err != nil {
		slog.ErrorContext(ctx, "Database health check failed", slog.Any("err", err))
		writeJSON(w, r, http.StatusServiceUnavailable, healthResponse{
			Status:   "unhealthy",
			Database: "unreachable",
		})
		return
	}

	writeJSON(w, r, http.StatusOK, healthResponse{
		Status:   "ok",
		Database: "ok",
	})
}
