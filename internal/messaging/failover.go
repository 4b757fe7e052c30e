package messaging

import (
	"context"
	"errors"

	"github.com/rmmassage/dispatch/pkg/logging"
)

// FailoverSender attempts a primary send, then falls back to a secondary provider on error.
type FailoverSender struct {
	primary       SMSSender
	secondary     SMSSender
	primaryName   string
	secondaryName string
	logger        *logging.Logger
}

// NewFailoverSender builds a failover sender with named providers.
func NewFailoverSender(primary SMSSender, primaryName string, secondary SMSSender, secondaryName string, logger *logging.Logger) *FailoverSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &FailoverSender{
		primary:       primary,
		secondary:     secondary,
		primaryName:   primaryName,
		secondaryName: secondaryName,
		logger:        logger,
	}
}

var _ SMSSender = (*FailoverSender)(nil)

// SendSMS tries the primary provider first, then falls back to the secondary provider on failure.
func (f *FailoverSender) SendSMS(ctx context.Context, to, body string) error {
	if f == nil || f.primary == nil {
		return errors.New("messaging: failover primary sender not configured")
	}
	err := f.primary.SendSMS(ctx, to, body)
	if err == nil {
		return nil
	}
	if f.secondary == nil {
		return err
	}
	f.logger.Warn("primary sms send failed; attempting fallback",
		"provider", f.primaryName,
		"fallback", f.secondaryName,
		"error", err,
		"to", to,
	)
	fallbackErr := f.secondary.SendSMS(ctx, to, body)
	if fallbackErr != nil {
		f.logger.Error("fallback sms send failed",
			"provider", f.secondaryName,
			"error", fallbackErr,
			"to", to,
		)
		return fallbackErr
	}
	return nil
}
