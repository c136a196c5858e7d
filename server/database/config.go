package database

import (
	"fmt"
	"strings"
)

type Type string

const (
	TypePostgres Type = "postgres"
	TypeMemory   Type = "memory"
)

type Config struct {
	Type     Type   `toml:"type"`
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	SSLMode  string `toml:"ssl_mode"`
	// Seed fills an empty memory store with demo data.
	Seed bool `toml:"seed"`
}

func (c Config) String() string {
	return fmt.Sprintf("\n Type: %s\n Host: %s\n Port: %d\n Username: %s\n Password: %s\n Database: %s\n SSLMode: %s\n Seed: %t",
		c.Type,
		c.Host,
		c.Port,
		c.Username,
		strings.Repeat("*", len(c.Password)),
		c.Database,
		c.SSLMode,
		c.Seed,
	)
}

func (c Config) DataSourceName() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host,
		c.Port,
		c.Username,
		c.Password,
		c.Database,
		sslMode,
	)
}
