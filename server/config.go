package server

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/topi314/campus-events/internal/xtime"
	"github.com/topi314/campus-events/server/auth"
	"github.com/topi314/campus-events/server/database"
	"github.com/topi314/campus-events/server/mail"
	"github.com/topi314/campus-events/server/notify"
	"github.com/topi314/campus-events/server/ticket"
)

// LoadConfig decodes the config file over the defaults. Secrets set in the
// environment or a .env file next to the working directory take precedence.
func LoadConfig(cfgPath string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env file: %w", err)
	}

	file, err := os.Open(cfgPath)
	if err != nil {
		return Config{}, fmt.Errorf("failed to open config file: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	cfg := defaultConfig()
	if _, err = toml.NewDecoder(file).Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config file: %w", err)
	}

	cfg.applyEnv()
	return cfg, nil
}

func defaultConfig() Config {
	return Config{
		Log: LogConfig{
			Level:     slog.LevelInfo,
			Format:    LogFormatText,
			AddSource: false,
		},
		Server: ServerConfig{
			Addr:      ":8080",
			PublicURL: "http://localhost:8080",
		},
		Database: database.Config{
			Type:     database.TypePostgres,
			Host:     "localhost",
			Port:     5432,
			Username: "postgres",
			Password: "password",
			Database: "campus-events",
		},
		Auth: auth.Config{
			SessionDuration:    xtime.Duration(30 * 24 * time.Hour),
			ResetTokenDuration: xtime.Duration(time.Hour),
		},
		Tickets: ticket.Config{
			Validity: xtime.Duration(24 * time.Hour),
		},
		Email: mail.Config{
			Provider:    mail.ProviderLog,
			FromName:    "Campus Events",
			FromAddress: "events@localhost",
			Every:       xtime.Duration(100 * time.Millisecond),
			Burst:       10,
		},
		Attendance: AttendanceConfig{
			AutoNoShow:    true,
			GracePeriod:   xtime.Duration(2 * time.Hour),
			SweepInterval: xtime.Duration(5 * time.Minute),
		},
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv("DATABASE_PASSWORD"); v != "" {
		c.Database.Password = v
	}
	if v := os.Getenv("SENDGRID_API_KEY"); v != "" {
		c.Email.APIKey = v
	}
	if v := os.Getenv("GOOGLE_CLIENT_SECRET"); v != "" {
		c.Auth.Google.ClientSecret = v
	}
	if v := os.Getenv("TICKET_SECRET"); v != "" {
		c.Tickets.Secret = v
	}
}

type Config struct {
	Dev           bool             `toml:"dev"`
	Log           LogConfig        `toml:"log"`
	Server        ServerConfig     `toml:"server"`
	Database      database.Config  `toml:"database"`
	Auth          auth.Config      `toml:"auth"`
	Tickets       ticket.Config    `toml:"tickets"`
	Email         mail.Config      `toml:"email"`
	Notifications notify.Config    `toml:"notifications"`
	Attendance    AttendanceConfig `toml:"attendance"`
}

func (c Config) String() string {
	return fmt.Sprintf("Dev: %t\nLog: %s\nServer: %s\nDatabase: %s\nAuth: %s\nTickets: %s\nEmail: %s\nNotifications: %s\nAttendance: %s",
		c.Dev,
		c.Log,
		c.Server,
		c.Database,
		c.Auth,
		c.Tickets,
		c.Email,
		c.Notifications,
		c.Attendance,
	)
}

type LogFormat string

const (
	LogFormatJSON LogFormat = "json"
	LogFormatText LogFormat = "text"
)

type LogConfig struct {
	Level     slog.Level `toml:"level"`
	Format    LogFormat  `toml:"format"`
	AddSource bool       `toml:"add_source"`
}

func (c LogConfig) String() string {
	return fmt.Sprintf("\n Level: %s\n Format: %s\n AddSource: %t",
		c.Level,
		c.Format,
		c.AddSource,
	)
}

type ServerConfig struct {
	Addr      string `toml:"addr"`
	PublicURL string `toml:"public_url"`
}

func (c ServerConfig) String() string {
	return fmt.Sprintf("\n Address: %s\n PublicURL: %s",
		c.Addr,
		c.PublicURL,
	)
}

// AttendanceConfig controls the automatic no-show sweep. Attendees still
// registered GracePeriod after an event ended are marked as no-show.
type AttendanceConfig struct {
	AutoNoShow    bool           `toml:"auto_no_show"`
	GracePeriod   xtime.Duration `toml:"grace_period"`
	SweepInterval xtime.Duration `toml:"sweep_interval"`
}

func (c AttendanceConfig) String() string {
	return fmt.Sprintf("\n AutoNoShow: %t\n GracePeriod: %s\n SweepInterval: %s",
		c.AutoNoShow,
		c.GracePeriod,
		c.SweepInterval,
	)
}
