package web

import (
	"errors"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/topi314/campus-events/server/auth"
	"github.com/topi314/campus-events/server/database"
)

const sessionCookie = "session"

// auth loads the session of the caller from the session cookie or a bearer
// token. Requests without a valid session continue anonymously.
func (h *handler) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		sessionID := bearerToken(r)
		if sessionID == "" {
			if cookie, err := r.Cookie(sessionCookie); err == nil {
				sessionID = cookie.Value
			}
		}
		if sessionID == "" {
			next.ServeHTTP(w, r)
			return
		}

		session, err := h.DB.GetSession(ctx, sessionID)
		if err != nil {
			if errors.Is(err, database.ErrNotFound) || errors.Is(err, database.ErrSessionExpired) {
				removeSessionCookie(w, h.Auth.SecureCookies())
				next.ServeHTTP(w, r)
				return
			}
			writeError(w, r, err)
			return
		}

		profile, err := h.DB.GetProfile(ctx, session.ProfileID)
		if err != nil {
			writeError(w, r, err)
			return
		}

		r = r.WithContext(auth.SetSession(ctx, auth.Session{
			Session: *session,
			Profile: *profile,
		}))
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}

type sessionHandlerFunc func(w http.ResponseWriter, r *http.Request, session auth.Session)

func (h *handler) requireAuth(next sessionHandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := auth.GetSession(r.Context())
		if !ok {
			writeError(w, r, errUnauthorized)
			return
		}
		next(w, r, session)
	}
}

func (h *handler) requireStudent(next sessionHandlerFunc) http.HandlerFunc {
	return h.requireAuth(func(w http.ResponseWriter, r *http.Request, session auth.Session) {
		if !session.IsStudent() {
			writeError(w, r, errForbidden)
			return
		}
		next(w, r, session)
	})
}

func (h *handler) requireOrganizer(next sessionHandlerFunc) http.HandlerFunc {
	return h.requireAuth(func(w http.ResponseWriter, r *http.Request, session auth.Session) {
		if !session.IsOrganizer() {
			writeError(w, r, errForbidden)
			return
		}
		next(w, r, session)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		slog.InfoContext(r.Context(), "Handled request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
			slog.Duration("duration", time.Since(start)),
		)
	})
}

func cleanPath(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			r.URL.Path = strings.TrimSuffix(path.Clean(r.URL.Path), "/")
		}
		next.ServeHTTP(w, r)
	})
}
