package config_test

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/woodblocks/internal/config"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{"PORT", "DB_PATH", "LOG_LEVEL", "JWT_SECRET", "JWT_EXPIRES_DAYS",
		"COOKIE_NAME", "CLIENT_ORIGIN", "DAILY_SALT", "NODE_ENV"} {
		t.Setenv(k, "")
	}
}

func TestDefaults(t *testing.T) {
	clearEnv(t)
	c, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "5175", c.Port)
	assert.Equal(t, "./data/app.db", c.DBPath)
	assert.Equal(t, zerolog.InfoLevel, c.LogLevel)
	assert.Equal(t, 14, c.JWTExpiresDays)
	assert.Equal(t, "blocks_token", c.CookieName)
	assert.False(t, c.Production)
}

func TestOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("JWT_EXPIRES_DAYS", "3")
	t.Setenv("NODE_ENV", "production")
	t.Setenv("JWT_SECRET", "s3cret")

	c, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "9000", c.Port)
	assert.Equal(t, zerolog.DebugLevel, c.LogLevel)
	assert.Equal(t, 3, c.JWTExpiresDays)
	assert.True(t, c.Production)
}

func TestInvalidValues(t *testing.T) {
	tests := map[string][2]string{
		"bad level":         {"LOG_LEVEL", "loud"},
		"bad expiry":        {"JWT_EXPIRES_DAYS", "soon"},
		"negative expiry":   {"JWT_EXPIRES_DAYS", "-1"},
		"prod needs secret": {"NODE_ENV", "production"},
	}
	for name, kv := range tests {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(kv[0], kv[1])
			_, err := config.Load()
			assert.Error(t, err)
		})
	}
}
