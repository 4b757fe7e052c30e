package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Second-timeout anchor policies for the escalation sweep.
const (
	SecondAnchorCreated   = "created"
	SecondAnchorEscalated = "escalated"
)

// Config holds application configuration.
type Config struct {
	Port          string
	Env           string
	LogLevel      string
	PublicBaseURL string
	StatusPageURL string
	DatabaseURL   string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	SMSProvider      string
	TelnyxAPIKey     string
	TelnyxProfileID  string
	TelnyxFromNumber string
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string
	SMSWebhookURL    string

	EmailProvider     string
	AWSRegion         string
	SESFromEmail      string
	SESFromName       string
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string

	Business Business
}

// Business carries the operational settings the booking wizard and the
// dispatch workflow share. Every field has a hardcoded fallback so the
// system keeps working when the settings store is empty.
type Business struct {
	OpeningHour          int
	ClosingHour          int
	BeforeBufferMinutes  int
	AfterBufferMinutes   int
	MinAdvanceHours      int
	DaytimeHourlyRate    float64
	AfterHoursHourlyRate float64
	ResponseTimeout      time.Duration
	SecondTimeoutAnchor  string
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", "http://localhost:8080"),
		StatusPageURL: getEnv("STATUS_PAGE_URL", "https://remedialmobilemassage.com.au/booking-response"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		SMSProvider:      strings.ToLower(strings.TrimSpace(getEnv("SMS_PROVIDER", "auto"))),
		TelnyxAPIKey:     getEnv("TELNYX_API_KEY", ""),
		TelnyxProfileID:  getEnv("TELNYX_MESSAGING_PROFILE_ID", ""),
		TelnyxFromNumber: getEnv("TELNYX_FROM_NUMBER", ""),
		TwilioAccountSID: getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:  getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioFromNumber: getEnv("TWILIO_FROM_NUMBER", ""),
		SMSWebhookURL:    getEnv("SMS_WEBHOOK_URL", ""),

		EmailProvider:     strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "ses"))),
		AWSRegion:         getEnv("AWS_REGION", "ap-southeast-2"),
		SESFromEmail:      getEnv("SES_FROM_EMAIL", "bookings@remedialmobilemassage.com.au"),
		SESFromName:       getEnv("SES_FROM_NAME", "Remedial Mobile Massage"),
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", "bookings@remedialmobilemassage.com.au"),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Remedial Mobile Massage"),

		Business: LoadBusiness(),
	}
}

// LoadBusiness reads the business settings with their fallback defaults.
func LoadBusiness() Business {
	anchor := strings.ToLower(strings.TrimSpace(getEnv("ESCALATION_SECOND_ANCHOR", SecondAnchorCreated)))
	if anchor != SecondAnchorEscalated {
		anchor = SecondAnchorCreated
	}
	return Business{
		OpeningHour:          getEnvAsInt("BUSINESS_OPENING_HOUR", 8),
		ClosingHour:          getEnvAsInt("BUSINESS_CLOSING_HOUR", 19),
		BeforeBufferMinutes:  getEnvAsInt("BEFORE_SERVICE_BUFFER_MINUTES", 15),
		AfterBufferMinutes:   getEnvAsInt("AFTER_SERVICE_BUFFER_MINUTES", 15),
		MinAdvanceHours:      getEnvAsInt("MIN_BOOKING_ADVANCE_HOURS", 2),
		DaytimeHourlyRate:    getEnvAsFloat("THERAPIST_DAYTIME_HOURLY_RATE", 90),
		AfterHoursHourlyRate: getEnvAsFloat("THERAPIST_AFTERHOURS_HOURLY_RATE", 110),
		ResponseTimeout:      time.Duration(getEnvAsInt("THERAPIST_RESPONSE_TIMEOUT_MINUTES", 60)) * time.Minute,
		SecondTimeoutAnchor:  anchor,
	}
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value.
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsFloat retrieves an environment variable as a float or returns a default value.
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value.
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}
