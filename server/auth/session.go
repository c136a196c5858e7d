package auth

import (
	"context"
	"crypto/rand"

	"github.com/topi314/campus-events/server/database"
)

type sessionKey struct{}

var sessionContextKey = &sessionKey{}

// Session is the authenticated caller of a request.
type Session struct {
	database.Session
	Profile database.Profile
}

func (s Session) IsStudent() bool {
	return s.Profile.UserType == database.UserTypeStudent
}

func (s Session) IsOrganizer() bool {
	return s.Profile.UserType == database.UserTypeOrganizer
}

func SetSession(ctx context.Context, session Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, session)
}

func GetSession(ctx context.Context) (Session, bool) {
	session, ok := ctx.Value(sessionContextKey).(Session)
	return session, ok
}

// NewToken returns a random token usable for sessions, oauth states and
// password reset links.
func NewToken() string {
	return rand.Text()
}
