package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/topi314/campus-events/server/auth"
	"github.com/topi314/campus-events/server/database"
	"github.com/topi314/campus-events/server/mail"
)

type signupRequest struct {
	UserType             database.UserType `json:"user_type" validate:"required,oneof=student organizer"`
	FirstName            string            `json:"first_name" validate:"required,notblank,max=100"`
	LastName             string            `json:"last_name" validate:"required,notblank,max=100"`
	Email                string            `json:"email" validate:"required,email"`
	Password             string            `json:"password" validate:"required,min=8,max=72"`
	PasswordConfirmation string            `json:"password_confirmation" validate:"required,eqfield=Password"`
	StudentNumber        string            `json:"student_number" validate:"required_if=UserType student,omitempty,alphanum,max=20"`
	Program              string            `json:"program" validate:"max=100"`
	Year                 int               `json:"year" validate:"omitempty,min=1,max=8"`
	Department           string            `json:"department" validate:"max=100"`
	Position             string            `json:"position" validate:"max=100"`
}

type loginRequest struct {
	Email    string            `json:"email" validate:"required,email"`
	Password string            `json:"password" validate:"required"`
	UserType database.UserType `json:"user_type" validate:"omitempty,oneof=student organizer"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type resetPasswordRequest struct {
	Token                string `json:"token" validate:"required"`
	Password             string `json:"password" validate:"required,min=8,max=72"`
	PasswordConfirmation string `json:"password_confirmation" validate:"required,eqfield=Password"`
}

type meResponse struct {
	ID            string            `json:"id"`
	Email         string            `json:"email"`
	FirstName     string            `json:"first_name"`
	LastName      string            `json:"last_name"`
	AvatarURL     string            `json:"avatar_url,omitempty"`
	UserType      database.UserType `json:"user_type"`
	StudentNumber string            `json:"student_number,omitempty"`
	Program       string            `json:"program,omitempty"`
	Year          int               `json:"year,omitempty"`
	TotalPoints   *int              `json:"total_points,omitempty"`
	Department    string            `json:"department,omitempty"`
	Position      string            `json:"position,omitempty"`
}

func (h *handler) Signup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var rq signupRequest
	if err := decodeJSON(r, &rq); err != nil {
		writeError(w, r, err)
		return
	}

	hash, err := auth.HashPassword(rq.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	now := time.Now()
	account := database.NewAccount{
		Profile: database.Profile{
			ID:        uuid.NewString(),
			Email:     strings.TrimSpace(rq.Email),
			FirstName: strings.TrimSpace(rq.FirstName),
			LastName:  strings.TrimSpace(rq.LastName),
			UserType:  rq.UserType,
			CreatedAt: now,
			UpdatedAt: now,
		},
		PasswordHash: hash,
	}
	switch rq.UserType {
	case database.UserTypeStudent:
		account.StudentNumber = strings.ToUpper(rq.StudentNumber)
		account.Program = rq.Program
		account.Year = rq.Year
	case database.UserTypeOrganizer:
		account.Department = rq.Department
		account.Position = rq.Position
	}

	if err = h.DB.CreateAccount(ctx, account); err != nil {
		writeError(w, r, err)
		return
	}

	slog.InfoContext(ctx, "Account created", slog.String("profile_id", account.Profile.ID), slog.String("user_type", string(rq.UserType)))

	if err = h.startSession(ctx, w, account.Profile.ID); err != nil {
		writeError(w, r, err)
		return
	}

	me, err := h.me(ctx, account.Profile.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, me)
}

func (h *handler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var rq loginRequest
	if err := decodeJSON(r, &rq); err != nil {
		writeError(w, r, err)
		return
	}

	creds, err := h.DB.GetCredentials(ctx, rq.Email)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeError(w, r, auth.ErrInvalidPassword)
			return
		}
		writeError(w, r, err)
		return
	}

	if err = auth.CheckPassword(creds.PasswordHash, rq.Password); err != nil {
		writeError(w, r, err)
		return
	}

	if rq.UserType != "" && rq.UserType != creds.UserType {
		writeError(w, r, fmt.Errorf("%w: this is not a %s account", errForbidden, rq.UserType))
		return
	}

	if err = h.startSession(ctx, w, creds.ProfileID); err != nil {
		writeError(w, r, err)
		return
	}

	me, err := h.me(ctx, creds.ProfileID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, me)
}

func (h *handler) Logout(w http.ResponseWriter, r *http.Request, session auth.Session) {
	if err := h.DB.DeleteSession(r.Context(), session.ID); err != nil {
		writeError(w, r, err)
		return
	}
	removeSessionCookie(w, h.Auth.SecureCookies())
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) Me(w http.ResponseWriter, r *http.Request, session auth.Session) {
	me, err := h.me(r.Context(), session.Profile.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, me)
}

func (h *handler) me(ctx context.Context, profileID string) (*meResponse, error) {
	profile, err := h.DB.GetProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}

	me := &meResponse{
		ID:        profile.ID,
		Email:     profile.Email,
		FirstName: profile.FirstName,
		LastName:  profile.LastName,
		AvatarURL: profile.AvatarURL,
		UserType:  profile.UserType,
	}

	switch profile.UserType {
	case database.UserTypeStudent:
		student, err := h.DB.GetStudent(ctx, profileID)
		if err != nil {
			return nil, err
		}
		me.StudentNumber = student.StudentNumber
		me.Program = student.Program
		me.Year = student.Year
		me.TotalPoints = &student.TotalPoints
	case database.UserTypeOrganizer:
		organizer, err := h.DB.GetOrganizer(ctx, profileID)
		if err != nil {
			return nil, err
		}
		me.Department = organizer.Department
		me.Position = organizer.Position
	}
	return me, nil
}

// ForgotPassword always answers 202 so the response does not reveal which
// emails have an account.
func (h *handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var rq forgotPasswordRequest
	if err := decodeJSON(r, &rq); err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.sendPasswordReset(ctx, rq.Email); err != nil {
		slog.ErrorContext(ctx, "Failed to send password reset", slog.Any("err", err))
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *handler) sendPasswordReset(ctx context.Context, email string) error {
	profile, err := h.DB.GetProfileByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil
		}
		return err
	}

	token := auth.NewToken()
	if err = h.DB.CreatePasswordReset(ctx, database.PasswordReset{
		Token:     token,
		ProfileID: profile.ID,
		ExpiresAt: time.Now().Add(h.Auth.ResetTokenDuration()),
	}); err != nil {
		return err
	}

	link := strings.TrimSuffix(h.Cfg.Server.PublicURL, "/") + "/reset-password?" + url.Values{"token": {token}}.Encode()
	return h.Mailer.Send(ctx, mail.Message{
		ToName:    profile.Name(),
		ToAddress: profile.Email,
		Subject:   "Reset your password",
		Text:      fmt.Sprintf("Hi %s,\n\nuse the following link to choose a new password:\n%s\n\nThe link expires in %s. If you did not request a new password you can ignore this mail.", profile.FirstName, link, h.Auth.ResetTokenDuration()),
	})
}

func (h *handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var rq resetPasswordRequest
	if err := decodeJSON(r, &rq); err != nil {
		writeError(w, r, err)
		return
	}

	hash, err := auth.HashPassword(rq.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	profileID, err := h.DB.UsePasswordReset(ctx, rq.Token)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err = h.DB.UpdatePassword(ctx, profileID, hash); err != nil {
		writeError(w, r, err)
		return
	}

	slog.InfoContext(ctx, "Password reset", slog.String("profile_id", profileID))
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	if !h.Auth.SSOEnabled() {
		writeError(w, r, database.ErrNotFound)
		return
	}

	redirect := localRedirect(r.URL.Query().Get("rd"))

	state := h.Auth.NewState(redirect)
	addOauthCookie(w, state, time.Now().Add(auth.MaxLoginFlowDuration), h.Auth.SecureCookies())
	http.Redirect(w, r, h.Auth.Config().AuthCodeURL(state), http.StatusTemporaryRedirect)
}

func (h *handler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	oauthState, _ := r.Cookie("oauthstate")
	state := query.Get("state")
	if oauthState == nil || state == "" || state != oauthState.Value {
		writeError(w, r, fmt.Errorf("%w: invalid oauth state", errBadRequest))
		return
	}

	redirectURL, ok := h.Auth.GetState(state)
	if !ok {
		writeError(w, r, fmt.Errorf("%w: unknown oauth state", errBadRequest))
		return
	}

	user, err := h.Auth.FetchGoogleUser(ctx, query.Get("code"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	profile, err := h.DB.GetProfileByEmail(ctx, user.Email)
	if errors.Is(err, database.ErrNotFound) {
		now := time.Now()
		profile = &database.Profile{
			ID:        uuid.NewString(),
			Email:     user.Email,
			FirstName: user.GivenName,
			LastName:  user.FamilyName,
			AvatarURL: user.Picture,
			UserType:  database.UserTypeStudent,
			CreatedAt: now,
			UpdatedAt: now,
		}
		err = h.DB.CreateAccount(ctx, database.NewAccount{Profile: *profile})
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err = h.startSession(ctx, w, profile.ID); err != nil {
		writeError(w, r, err)
		return
	}
	http.Redirect(w, r, redirectURL, http.StatusFound)
}

func (h *handler) startSession(ctx context.Context, w http.ResponseWriter, profileID string) error {
	now := time.Now()
	session := database.Session{
		ID:        auth.NewToken(),
		ProfileID: profileID,
		CreatedAt: now,
		ExpiresAt: now.Add(h.Auth.SessionDuration()),
	}
	if err := h.DB.CreateSession(ctx, session); err != nil {
		return err
	}
	addSessionCookie(w, session.ID, session.ExpiresAt, h.Auth.SecureCookies())
	return nil
}

func addSessionCookie(w http.ResponseWriter, sessionID string, expires time.Time, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sessionID,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func removeSessionCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func addOauthCookie(w http.ResponseWriter, state string, expires time.Time, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     "oauthstate",
		Value:    state,
		Path:     "/login",
		Expires:  expires,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// localRedirect returns rd when it is a path on this host and "/" otherwise.
// Browsers read a leading "/\" the same as "//".
func localRedirect(rd string) string {
	if !strings.HasPrefix(rd, "/") || strings.HasPrefix(rd, "//") || strings.HasPrefix(rd, "/\\") {
		return "/"
	}
	return rd
}
