package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("BACKEND_URL", "http://cpaas.internal/")
	t.Setenv("PUBLIC_URL", "https://console.example.com/")

	cfg := Load()

	assert.Equal(t, "http://cpaas.internal", cfg.Backend.AuthURL)
	assert.Equal(t, "http://cpaas.internal", cfg.Backend.MessagingURL)
	assert.Equal(t, "https://console.example.com/oauth/callback", cfg.OAuth.CallbackURL)
	assert.Equal(t, 5*time.Minute, cfg.OAuth.CorrelationTTL)
	assert.Equal(t, 160, cfg.Dispatch.SMSMaxLength)
	assert.Equal(t, 0, cfg.Dispatch.MaxInFlight)
	assert.Equal(t, "backend", cfg.OAuth.Mode)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("MESSAGING_BACKEND_URL", "http://messaging:9000")
	t.Setenv("DISPATCH_MAX_IN_FLIGHT", "8")
	t.Setenv("BACKEND_TIMEOUT", "3s")
	t.Setenv("SMS_MAX_LENGTH", "not-a-number")

	cfg := Load()

	assert.Equal(t, "http://messaging:9000", cfg.Backend.MessagingURL)
	assert.Equal(t, 8, cfg.Dispatch.MaxInFlight)
	assert.Equal(t, 3*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, 160, cfg.Dispatch.SMSMaxLength)
}
