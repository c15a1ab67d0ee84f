package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"APP_ENV", "INVITE_TTL", "SWEEP_AT", "CHECKIN_RADIUS_METERS", "ALLOWED_ORIGINS", "CLASS_TIMEZONE"} {
		t.Setenv(k, "")
	}
	cfg := Load()
	assert.Equal(t, "dev", cfg.Env)
	assert.False(t, cfg.Production())
	assert.Equal(t, 4*time.Hour, cfg.InviteTTL)
	assert.Equal(t, "20:00", cfg.SweepAt)
	assert.Equal(t, 150, cfg.CheckinRadiusMeters)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Equal(t, "America/New_York", cfg.ClassTimezone)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	t.Setenv("INVITE_TTL", "90m")
	t.Setenv("CHECKIN_RADIUS_METERS", "0")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("CLASS_TIMEZONE", "UTC")

	cfg := Load()
	assert.True(t, cfg.Production())
	assert.Equal(t, 90*time.Minute, cfg.InviteTTL)
	assert.Equal(t, 0, cfg.CheckinRadiusMeters)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, time.UTC, cfg.Location())
}

func TestLoadInvalidFallsBack(t *testing.T) {
	t.Setenv("INVITE_TTL", "soon")
	t.Setenv("RATE_LIMIT_PER_MIN", "lots")
	t.Setenv("CLASS_TIMEZONE", "Mars/Olympus")

	cfg := Load()
	assert.Equal(t, 4*time.Hour, cfg.InviteTTL)
	assert.Equal(t, 120, cfg.RateLimitPerMin)
	assert.Equal(t, time.UTC, cfg.Location())
}
