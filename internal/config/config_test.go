package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, "auto", cfg.SMSProvider)
	assert.Equal(t, "ap-southeast-2", cfg.AWSRegion)

	assert.Equal(t, 8, cfg.Business.OpeningHour)
	assert.Equal(t, 19, cfg.Business.ClosingHour)
	assert.Equal(t, 15, cfg.Business.BeforeBufferMinutes)
	assert.Equal(t, 15, cfg.Business.AfterBufferMinutes)
	assert.Equal(t, 2, cfg.Business.MinAdvanceHours)
	assert.Equal(t, 60*time.Minute, cfg.Business.ResponseTimeout)
	assert.Equal(t, SecondAnchorCreated, cfg.Business.SecondTimeoutAnchor)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("THERAPIST_RESPONSE_TIMEOUT_MINUTES", "30")
	t.Setenv("BUSINESS_OPENING_HOUR", "7")
	t.Setenv("ESCALATION_SECOND_ANCHOR", "escalated")
	t.Setenv("SMS_PROVIDER", "Twilio")

	cfg := Load()
	assert.Equal(t, 30*time.Minute, cfg.Business.ResponseTimeout)
	assert.Equal(t, 7, cfg.Business.OpeningHour)
	assert.Equal(t, SecondAnchorEscalated, cfg.Business.SecondTimeoutAnchor)
	assert.Equal(t, "twilio", cfg.SMSProvider)
}

func TestInvalidAnchorFallsBack(t *testing.T) {
	t.Setenv("ESCALATION_SECOND_ANCHOR", "whenever")
	cfg := LoadBusiness()
	assert.Equal(t, SecondAnchorCreated, cfg.SecondTimeoutAnchor)
}
