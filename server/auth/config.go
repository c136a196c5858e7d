package auth

import (
	"fmt"
	"strings"

	"github.com/topi314/campus-events/internal/xtime"
)

type Config struct {
	SessionDuration    xtime.Duration `toml:"session_duration"`
	ResetTokenDuration xtime.Duration `toml:"reset_token_duration"`
	SecureCookies      bool           `toml:"secure_cookies"`
	Google             GoogleConfig   `toml:"google"`
}

func (c Config) String() string {
	return fmt.Sprintf("\n SessionDuration: %s\n ResetTokenDuration: %s\n SecureCookies: %t\n Google: %s",
		c.SessionDuration,
		c.ResetTokenDuration,
		c.SecureCookies,
		c.Google,
	)
}

// GoogleConfig configures campus single sign-on. Only accounts of
// AllowedDomain may log in when it is set.
type GoogleConfig struct {
	Enabled       bool   `toml:"enabled"`
	ClientID      string `toml:"client_id"`
	ClientSecret  string `toml:"client_secret"`
	AllowedDomain string `toml:"allowed_domain"`
}

func (c GoogleConfig) String() string {
	return fmt.Sprintf("\n  Enabled: %t\n  ClientID: %s\n  ClientSecret: %s\n  AllowedDomain: %s",
		c.Enabled,
		c.ClientID,
		strings.Repeat("*", len(c.ClientSecret)),
		c.AllowedDomain,
	)
}
