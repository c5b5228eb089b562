// Package config reads the process configuration from the environment.
// A .env file in the working directory is loaded first when present.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	_ "github.com/joho/godotenv/autoload"
)

const (
	ScopeAll   = "all"
	ScopeOwner = "owner"
)

type Config struct {
	Port     int
	Env      string
	LogLevel string

	JWTSecret string

	Database DatabaseConfig

	CORSAllowedOrigins []string

	// BroadcastScope is ScopeAll (every connected client) or ScopeOwner.
	BroadcastScope    string
	RelayClientEvents bool
}

type DatabaseConfig struct {
	URL      string
	Host     string
	Port     string
	Username string
	Password string
	Name     string
	SSLMode  string
}

// DSN returns DATABASE_URL when set, otherwise a key/value DSN built from the parts.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		d.Host, d.Username, d.Password, d.Name, d.Port, d.SSLMode)
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

// Load builds a Config from the environment, applying defaults.
func Load() (Config, error) {
	cfg := Config{
		Env:       getenv("APP_ENV", "development"),
		LogLevel:  getenv("LOG_LEVEL", "info"),
		JWTSecret: os.Getenv("JWT_SECRET"),
		Database: DatabaseConfig{
			URL:      os.Getenv("DATABASE_URL"),
			Host:     getenv("DB_HOST", "localhost"),
			Port:     getenv("DB_PORT", "5432"),
			Username: os.Getenv("DB_USERNAME"),
			Password: os.Getenv("DB_PASSWORD"),
			Name:     os.Getenv("DB_DATABASE"),
			SSLMode:  getenv("DB_SSLMODE", "disable"),
		},
		CORSAllowedOrigins: splitList(getenv("CORS_ALLOWED_ORIGINS", "https://*,http://*")),
		BroadcastScope:     strings.ToLower(getenv("BROADCAST_SCOPE", ScopeAll)),
	}

	port, err := strconv.Atoi(getenv("PORT", "8080"))
	if err != nil || port <= 0 || port > 65535 {
		return Config{}, fmt.Errorf("invalid PORT %q", os.Getenv("PORT"))
	}
	cfg.Port = port

	if v := os.Getenv("SOCKET_RELAY_CLIENT_EVENTS"); v != "" {
		relay, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SOCKET_RELAY_CLIENT_EVENTS %q: %w", v, err)
		}
		cfg.RelayClientEvents = relay
	}

	if cfg.BroadcastScope != ScopeAll && cfg.BroadcastScope != ScopeOwner {
		return Config{}, fmt.Errorf("invalid BROADCAST_SCOPE %q (want %q or %q)", cfg.BroadcastScope, ScopeAll, ScopeOwner)
	}

	return cfg, nil
}

// RequireSecret fails when no JWT signing secret is configured.
func (c Config) RequireSecret() error {
	if c.JWTSecret == "" {
		return errors.New("missing JWT_SECRET")
	}
	return nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
