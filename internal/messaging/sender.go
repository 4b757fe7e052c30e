package messaging

import "context"

// SMSSender dispatches a single outbound SMS. Implementations normalize
// nothing; callers pass E.164 numbers.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}
