package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const MaxLoginFlowDuration = 10 * time.Minute

const googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

var (
	ErrInvalidPassword  = errors.New("invalid email or password")
	ErrDomainNotAllowed = errors.New("email domain is not allowed")
)

type loginState struct {
	RedirectURL string
	CreatedAt   time.Time
}

func (s loginState) IsExpired() bool {
	return time.Since(s.CreatedAt) > MaxLoginFlowDuration
}

func New(cfg Config, publicURL string) *Auth {
	a := &Auth{
		cfg: cfg,
		oauth2Cfg: &oauth2.Config{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			Endpoint:     endpoints.Google,
			RedirectURL:  strings.TrimSuffix(publicURL, "/") + "/login/callback",
			Scopes:       []string{"openid", "email", "profile"},
		},
		states: make(map[string]loginState),
	}

	if cfg.Google.Enabled {
		go a.cleanupStates()
	}

	return a
}

type Auth struct {
	cfg       Config
	oauth2Cfg *oauth2.Config
	states    map[string]loginState
	statesMu  sync.Mutex
}

func (a *Auth) Config() *oauth2.Config {
	return a.oauth2Cfg
}

func (a *Auth) SSOEnabled() bool {
	return a.cfg.Google.Enabled
}

func (a *Auth) SessionDuration() time.Duration {
	return time.Duration(a.cfg.SessionDuration)
}

func (a *Auth) ResetTokenDuration() time.Duration {
	return time.Duration(a.cfg.ResetTokenDuration)
}

func (a *Auth) SecureCookies() bool {
	return a.cfg.SecureCookies
}

func (a *Auth) NewState(redirectURL string) string {
	a.statesMu.Lock()
	defer a.statesMu.Unlock()

	state := NewToken()
	a.states[state] = loginState{
		RedirectURL: redirectURL,
		CreatedAt:   time.Now(),
	}
	return state
}

// GetState consumes the state, a state can only be used once.
func (a *Auth) GetState(state string) (string, bool) {
	a.statesMu.Lock()
	defer a.statesMu.Unlock()

	lState, ok := a.states[state]
	if ok {
		delete(a.states, state)
	}

	if !ok || lState.IsExpired() {
		return "", false
	}

	return lState.RedirectURL, true
}

func (a *Auth) cleanupStates() {
	for {
		a.doCleanupStates()
		time.Sleep(10 * time.Minute)
	}
}

func (a *Auth) doCleanupStates() {
	a.statesMu.Lock()
	defer a.statesMu.Unlock()

	for state, lState := range a.states {
		if lState.IsExpired() {
			delete(a.states, state)
		}
	}
}

func HashPassword(password string) ([]byte, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	return hash, nil
}

func CheckPassword(hash []byte, password string) error {
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		return ErrInvalidPassword
	}
	return nil
}

type GoogleUser struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
	Picture       string `json:"picture"`
	HostedDomain  string `json:"hd"`
}

// FetchGoogleUser exchanges the code and loads the user info of the account.
func (a *Auth) FetchGoogleUser(ctx context.Context, code string) (*GoogleUser, error) {
	token, err := a.oauth2Cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange oauth code: %w", err)
	}

	rq, err := http.NewRequestWithContext(ctx, http.MethodGet, googleUserInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create user info request: %w", err)
	}

	rs, err := a.oauth2Cfg.Client(ctx, token).Do(rq)
	if err != nil {
		return nil, fmt.Errorf("failed to get user info: %w", err)
	}
	defer func() {
		_ = rs.Body.Close()
	}()

	if rs.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to get user info: unexpected status code %d", rs.StatusCode)
	}

	var user GoogleUser
	if err = json.NewDecoder(rs.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("failed to decode user info: %w", err)
	}

	if !user.EmailVerified || !a.AllowedEmail(user.Email) {
		return nil, ErrDomainNotAllowed
	}
	return &user, nil
}

func (a *Auth) AllowedEmail(email string) bool {
	if a.cfg.Google.AllowedDomain == "" {
		return true
	}
	return strings.HasSuffix(strings.ToLower(email), "@"+strings.ToLower(a.cfg.Google.AllowedDomain))
}
