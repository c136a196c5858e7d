package web

import (
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/topi314/campus-events/server/database/memstore"
)

func TestSignup(t *testing.T) {
	s := newTestServer(t)

	body := map[string]any{
		"user_type":             "student",
		"first_name":            "Ada",
		"last_name":             "Lovelace",
		"email":                 "ada.l@university.edu",
		"password":              "analytical",
		"password_confirmation": "analytic",
		"student_number":        "S10101010",
		"program":               "Mathematics",
		"year":                  1,
	}

	rec := s.do(http.MethodPost, "/signup", "", body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[errorResponse](t, rec).Fields, "password_confirmation")

	body["password_confirmation"] = "analytical"
	rec = s.do(http.MethodPost, "/signup", "", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	me := decode[meResponse](t, rec)
	assert.Equal(t, "S10101010", me.StudentNumber)
	require.NotNil(t, me.TotalPoints)
	assert.Zero(t, *me.TotalPoints)

	var token string
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookie {
			token = c.Value
			assert.True(t, c.HttpOnly)
		}
	}
	require.NotEmpty(t, token)

	rec = s.do(http.MethodGet, "/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ada.l@university.edu", decode[meResponse](t, rec).Email)

	rec = s.do(http.MethodPost, "/signup", "", body)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSignupStudentNeedsNumber(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/signup", "", map[string]any{
		"user_type":             "student",
		"first_name":            "Ada",
		"last_name":             "Lovelace",
		"email":                 "ada.l@university.edu",
		"password":              "analytical",
		"password_confirmation": "analytical",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[errorResponse](t, rec).Fields, "student_number")

	rec = s.do(http.MethodPost, "/signup", "", map[string]any{
		"user_type":             "organizer",
		"first_name":            "Ada",
		"last_name":             "Lovelace",
		"email":                 "ada.l@university.edu",
		"password":              "analytical",
		"password_confirmation": "analytical",
		"department":            "Mathematics",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "Mathematics", decode[meResponse](t, rec).Department)
}

func TestLogin(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name     string
		email    string
		password string
		userType string
		status   int
	}{
		{"student", "john.doe@university.edu", memstore.SeedPassword, "student", http.StatusOK},
		{"any tab", "john.doe@university.edu", memstore.SeedPassword, "", http.StatusOK},
		{"student on organizer tab", "john.doe@university.edu", memstore.SeedPassword, "organizer", http.StatusForbidden},
		{"organizer on student tab", memstore.SeedOrganizerEmail, memstore.SeedPassword, "student", http.StatusForbidden},
		{"wrong password", "john.doe@university.edu", "wrong-password", "student", http.StatusUnauthorized},
		{"unknown email", "nobody@university.edu", memstore.SeedPassword, "", http.StatusUnauthorized},
		{"invalid user type", "john.doe@university.edu", memstore.SeedPassword, "admin", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(http.MethodPost, "/login", "", map[string]string{
				"email":     tt.email,
				"password":  tt.password,
				"user_type": tt.userType,
			})
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestLogout(t *testing.T) {
	s := newTestServer(t)
	token := s.login("john.doe@university.edu")

	rec := s.do(http.MethodPost, "/logout", token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(http.MethodGet, "/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPasswordReset(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/forgot-password", "", map[string]string{"email": "nobody@university.edu"})
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Empty(t, s.mailer.Messages())

	rec = s.do(http.MethodPost, "/forgot-password", "", map[string]string{"email": "jane.smith@university.edu"})
	require.Equal(t, http.StatusAccepted, rec.Code)
	messages := s.mailer.Messages()
	require.Len(t, messages, 1)
	assert.Equal(t, "jane.smith@university.edu", messages[0].ToAddress)

	_, link, ok := strings.Cut(messages[0].Text, "http://campus.test/reset-password?")
	require.True(t, ok)
	link, _, _ = strings.Cut(link, "\n")
	query, err := url.ParseQuery(link)
	require.NoError(t, err)
	token := query.Get("token")
	require.NotEmpty(t, token)

	reset := map[string]string{
		"token":                 token,
		"password":              "a-new-password",
		"password_confirmation": "a-new-password",
	}
	rec = s.do(http.MethodPost, "/reset-password", "", reset)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPost, "/reset-password", "", reset)
	assert.Equal(t, http.StatusGone, rec.Code)

	rec = s.do(http.MethodPost, "/login", "", map[string]string{
		"email":    "jane.smith@university.edu",
		"password": "a-new-password",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGoogleLoginDisabled(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/login/google", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLocalRedirect(t *testing.T) {
	tests := []struct {
		rd   string
		want string
	}{
		{"", "/"},
		{"/events/42", "/events/42"},
		{"/", "/"},
		{"https://evil.com", "/"},
		{"//evil.com", "/"},
		{`/\evil.com`, "/"},
		{"evil.com", "/"},
	}
	for _, tt := range tests {
		t.Run(tt.rd, func(t *testing.T) {
			assert.Equal(t, tt.want, localRedirect(tt.rd))
		})
	}
}
