package response

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rmmassage/dispatch/internal/booking"
	"github.com/rmmassage/dispatch/internal/dispatch"
	"github.com/rmmassage/dispatch/internal/messaging"
	"github.com/rmmassage/dispatch/internal/therapist"
	"github.com/rmmassage/dispatch/pkg/logging"
)

// Outcome classifies what a therapist's reply did to the booking.
type Outcome string

const (
	// OutcomeApplied means the response changed (or validly recorded
	// against) the booking.
	OutcomeApplied Outcome = "applied"
	// OutcomeAlreadyResolved means another response got there first; the
	// reply is a no-op for state but the caller should tell the therapist.
	OutcomeAlreadyResolved Outcome = "already_resolved"
	// OutcomeNotFound means no booking carries the given code.
	OutcomeNotFound Outcome = "not_found"
)

// BookingStore is the slice of the booking store the processor needs.
type BookingStore interface {
	GetByCode(ctx context.Context, code string) (*booking.Booking, error)
	Confirm(ctx context.Context, code string, therapistID uuid.UUID, now time.Time) (bool, error)
	DeclineDirect(ctx context.Context, code string, therapistID uuid.UUID, now time.Time) (bool, error)
	AppendHistory(ctx context.Context, bookingID uuid.UUID, status booking.Status, actorTherapistID *uuid.UUID, note string) error
}

// TherapistSource resolves the replying therapist for notifications.
type TherapistSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*therapist.Therapist, error)
}

// Notifier is the outbound side of a processed response.
type Notifier interface {
	NotifyCustomer(ctx context.Context, b *booking.Booking, kind dispatch.CustomerKind) dispatch.Result
	NotifyCustomerConfirmed(ctx context.Context, b *booking.Booking, th *therapist.Therapist) dispatch.Result
	NotifyTherapistConfirmed(ctx context.Context, b *booking.Booking, th *therapist.Therapist) dispatch.Result
}

// Processor applies accept/decline responses to bookings. Both entry
// protocols (the email link handler and the SMS webhook) converge here.
type Processor struct {
	bookings   BookingStore
	therapists TherapistSource
	notifier   Notifier
	logger     *logging.Logger
	now        func() time.Time
}

// NewProcessor wires a response processor.
func NewProcessor(bookings BookingStore, therapists TherapistSource, notifier Notifier, logger *logging.Logger) *Processor {
	if logger == nil {
		logger = logging.Default()
	}
	return &Processor{
		bookings:   bookings,
		therapists: therapists,
		notifier:   notifier,
		logger:     logger,
		now:        time.Now,
	}
}

// Apply records a therapist's accept or decline against the booking with
// the given code. The status write is a single conditional update, so with
// several therapists contacted concurrently the first accept wins and every
// later reply comes back AlreadyResolved. Replaying the same reply is safe
// for the same reason.
func (p *Processor) Apply(ctx context.Context, code string, therapistID uuid.UUID, action string) (Outcome, error) {
	switch action {
	case messaging.ActionAccept:
		return p.applyAccept(ctx, code, therapistID)
	case messaging.ActionDecline:
		return p.applyDecline(ctx, code, therapistID)
	default:
		return "", fmt.Errorf("response: unknown action %q", action)
	}
}

func (p *Processor) applyAccept(ctx context.Context, code string, therapistID uuid.UUID) (Outcome, error) {
	now := p.now()
	applied, err := p.bookings.Confirm(ctx, code, therapistID, now)
	if err != nil {
		return "", fmt.Errorf("response: confirm %s: %w", code, err)
	}

	if !applied {
		// Distinguish a missing code from a booking someone else resolved.
		if _, err := p.bookings.GetByCode(ctx, code); err != nil {
			if errors.Is(err, booking.ErrBookingNotFound) {
				return OutcomeNotFound, nil
			}
			return "", fmt.Errorf("response: lookup %s: %w", code, err)
		}
		return OutcomeAlreadyResolved, nil
	}

	b, err := p.bookings.GetByCode(ctx, code)
	if err != nil {
		return "", fmt.Errorf("response: reload %s: %w", code, err)
	}

	if err := p.bookings.AppendHistory(ctx, b.ID, booking.StatusConfirmed, &therapistID, "therapist accepted"); err != nil {
		p.logger.Error("history append failed", "booking", code, "error", err)
	}

	// State is committed; notifications are best-effort from here.
	th, err := p.therapists.GetByID(ctx, therapistID)
	if err != nil {
		p.logger.Error("accepting therapist lookup failed", "booking", code, "therapist_id", therapistID, "error", err)
		p.notifier.NotifyCustomer(ctx, b, dispatch.KindBookingConfirmed)
		return OutcomeApplied, nil
	}
	p.notifier.NotifyCustomerConfirmed(ctx, b, th)
	p.notifier.NotifyTherapistConfirmed(ctx, b, th)

	p.logger.Info("booking confirmed", "booking", code, "therapist_id", therapistID)
	return OutcomeApplied, nil
}

// applyDecline finalizes a direct-round booking without fallback to
// declined. In every other awaiting state the decline is recorded in
// history only: reassignment is timeout-driven, because other therapists
// from the same fan-out round may still accept.
func (p *Processor) applyDecline(ctx context.Context, code string, therapistID uuid.UUID) (Outcome, error) {
	b, err := p.bookings.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, booking.ErrBookingNotFound) {
			return OutcomeNotFound, nil
		}
		return "", fmt.Errorf("response: lookup %s: %w", code, err)
	}
	if !b.Status.Awaiting() {
		return OutcomeAlreadyResolved, nil
	}

	if b.Status == booking.StatusRequested && !b.FallbackOption {
		applied, err := p.bookings.DeclineDirect(ctx, code, therapistID, p.now())
		if err != nil {
			return "", fmt.Errorf("response: decline %s: %w", code, err)
		}
		if !applied {
			return OutcomeAlreadyResolved, nil
		}
		if err := p.bookings.AppendHistory(ctx, b.ID, booking.StatusDeclined, &therapistID, "therapist declined"); err != nil {
			p.logger.Error("history append failed", "booking", code, "error", err)
		}
		p.notifier.NotifyCustomer(ctx, b, dispatch.KindFinalDeclined)
		p.logger.Info("booking declined", "booking", code, "therapist_id", therapistID)
		return OutcomeApplied, nil
	}

	if err := p.bookings.AppendHistory(ctx, b.ID, b.Status, &therapistID, "therapist declined"); err != nil {
		p.logger.Error("history append failed", "booking", code, "error", err)
	}
	p.logger.Info("decline recorded, awaiting other responses", "booking", code, "therapist_id", therapistID)
	return OutcomeApplied, nil
}
