package bootstrap

import (
	"context"
	"crypto/tls"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/rmmassage/dispatch/internal/config"
	"github.com/rmmassage/dispatch/internal/messaging"
	"github.com/rmmassage/dispatch/internal/notify"
	"github.com/rmmassage/dispatch/pkg/logging"
)

// BuildDBPool opens the Postgres pool and verifies connectivity.
func BuildDBPool(ctx context.Context, cfg *appconfig.Config) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available, booking codes fall back to table scan", "error", err)
		return nil
	}
	return client
}

// BuildEmailSender selects the configured email provider. A missing
// provider degrades to the logging stub so notifications stay best-effort.
func BuildEmailSender(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) notify.EmailSender {
	if logger == nil {
		logger = logging.Default()
	}

	switch cfg.EmailProvider {
	case "sendgrid":
		if sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger); sender != nil {
			logger.Info("email provider selected", "provider", "sendgrid")
			return sender
		}
		logger.Warn("sendgrid not configured, email disabled")
	case "ses":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			logger.Warn("aws config load failed, email disabled", "error", err)
			break
		}
		if sender := notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
			FromName:  cfg.SESFromName,
		}, logger); sender != nil {
			logger.Info("email provider selected", "provider", "ses")
			return sender
		}
	default:
		logger.Warn("unknown email provider, email disabled", "provider", cfg.EmailProvider)
	}
	return notify.NewStubEmailSender(logger)
}

// BuildSMSSender selects the configured SMS provider, or nil when none is
// configured. SMS is one of two channels, so the caller keeps going without it.
func BuildSMSSender(cfg *appconfig.Config, logger *logging.Logger) messaging.SMSSender {
	if logger == nil {
		logger = logging.Default()
	}
	sender, provider, reason := messaging.BuildSMSSender(messaging.ProviderSelectionConfig{
		Preference:       cfg.SMSProvider,
		TelnyxAPIKey:     cfg.TelnyxAPIKey,
		TelnyxProfileID:  cfg.TelnyxProfileID,
		TelnyxFromNumber: cfg.TelnyxFromNumber,
		TwilioAccountSID: cfg.TwilioAccountSID,
		TwilioAuthToken:  cfg.TwilioAuthToken,
		TwilioFromNumber: cfg.TwilioFromNumber,
	}, logger)
	if sender == nil {
		logger.Warn("sms disabled", "reason", reason)
		return nil
	}
	logger.Info("sms provider selected", "provider", provider)
	return sender
}
