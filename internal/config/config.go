package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/rs/zerolog"
)

type Config struct {
	Port           string
	DBPath         string
	LogLevel       zerolog.Level
	JWTSecret      string
	JWTExpiresDays int
	CookieName     string
	ClientOrigin   string
	DailySalt      string
	Production     bool
}

// Load reads configuration from the environment, falling back to
// development defaults.
func Load() (Config, error) {
	c := Config{
		Port:           envOr("PORT", "5175"),
		DBPath:         envOr("DB_PATH", "./data/app.db"),
		JWTSecret:      envOr("JWT_SECRET", "dev_secret_change_me"),
		JWTExpiresDays: 14,
		CookieName:     envOr("COOKIE_NAME", "blocks_token"),
		ClientOrigin:   envOr("CLIENT_ORIGIN", "http://localhost:5173"),
		DailySalt:      envOr("DAILY_SALT", "local_dev_salt"),
		Production:     os.Getenv("NODE_ENV") == "production",
	}

	if v := os.Getenv("JWT_EXPIRES_DAYS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("invalid JWT_EXPIRES_DAYS %q", v)
		}
		c.JWTExpiresDays = n
	}

	level, err := zerolog.ParseLevel(envOr("LOG_LEVEL", "info"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	c.LogLevel = level

	if c.Production && c.JWTSecret == "dev_secret_change_me" {
		return Config{}, fmt.Errorf("JWT_SECRET is required when NODE_ENV=production")
	}
	return c, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
