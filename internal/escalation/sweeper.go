package escalation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rmmassage/dispatch/internal/booking"
	"github.com/rmmassage/dispatch/internal/config"
	"github.com/rmmassage/dispatch/internal/dispatch"
	"github.com/rmmassage/dispatch/internal/observability/metrics"
	"github.com/rmmassage/dispatch/internal/therapist"
	"github.com/rmmassage/dispatch/pkg/logging"
)

// BookingStore is the slice of the booking store the sweep needs.
type BookingStore interface {
	ListFirstTimeouts(ctx context.Context, cutoff time.Time) ([]booking.Booking, error)
	ListSecondTimeouts(ctx context.Context, cutoff time.Time, anchor string) ([]booking.Booking, error)
	MarkReassigned(ctx context.Context, id uuid.UUID, contacted []uuid.UUID, now time.Time) (bool, error)
	MarkDeclinedByTimeout(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	AppendHistory(ctx context.Context, bookingID uuid.UUID, status booking.Status, actorTherapistID *uuid.UUID, note string) error
}

// EligibilitySource re-runs therapist matching for a fallback round.
type EligibilitySource interface {
	FindEligibleTherapists(ctx context.Context, b *booking.Booking, exclude []uuid.UUID) ([]therapist.Therapist, error)
}

// Notifier is the outbound side of an escalation.
type Notifier interface {
	NotifyCustomer(ctx context.Context, b *booking.Booking, kind dispatch.CustomerKind) dispatch.Result
	NotifyTherapist(ctx context.Context, b *booking.Booking, th *therapist.Therapist, timeoutMinutes int) dispatch.Result
}

// Result counts what one sweep did.
type Result struct {
	FirstExamined  int
	SecondExamined int
	Reassigned     int
	Declined       int
	Failed         int
}

// Sweeper drives the two-stage timeout policy: one fallback round after
// the response timeout, a final decline after twice the timeout. Two
// rounds is fixed; no further escalation exists.
type Sweeper struct {
	bookings    BookingStore
	eligibility EligibilitySource
	notifier    Notifier
	settings    config.Business
	metrics     *metrics.DispatchMetrics
	logger      *logging.Logger
}

// NewSweeper wires a timeout sweeper.
func NewSweeper(bookings BookingStore, eligibility EligibilitySource, notifier Notifier, settings config.Business, m *metrics.DispatchMetrics, logger *logging.Logger) *Sweeper {
	if logger == nil {
		logger = logging.Default()
	}
	return &Sweeper{
		bookings:    bookings,
		eligibility: eligibility,
		notifier:    notifier,
		settings:    settings,
		metrics:     m,
		logger:      logger,
	}
}

// Sweep processes every booking past its response deadline. Candidate sets
// are read up-front so a booking escalated in this run is not immediately
// finalized by the second stage. Items are processed sequentially and
// failures are isolated per booking.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) (Result, error) {
	timeout := s.settings.ResponseTimeout
	firstCutoff := now.Add(-timeout)
	// With the created anchor the final deadline is 2x the timeout from
	// creation; with the escalated anchor the fan-out round gets one full
	// timeout of its own, measured from escalated_at.
	secondCutoff := now.Add(-2 * timeout)
	if s.settings.SecondTimeoutAnchor == config.SecondAnchorEscalated {
		secondCutoff = now.Add(-timeout)
	}

	firstSet, err := s.bookings.ListFirstTimeouts(ctx, firstCutoff)
	if err != nil {
		return Result{}, fmt.Errorf("escalation: list first timeouts: %w", err)
	}
	secondSet, err := s.bookings.ListSecondTimeouts(ctx, secondCutoff, s.settings.SecondTimeoutAnchor)
	if err != nil {
		return Result{}, fmt.Errorf("escalation: list second timeouts: %w", err)
	}

	res := Result{FirstExamined: len(firstSet), SecondExamined: len(secondSet)}

	for i := range firstSet {
		if err := s.escalateFirst(ctx, &firstSet[i], now, &res); err != nil {
			res.Failed++
			s.logger.Error("first-timeout escalation failed", "booking", firstSet[i].Code, "error", err)
		}
	}
	firstDeclined, firstFailed := res.Declined, res.Failed
	for i := range secondSet {
		applied, err := s.declineFinal(ctx, &secondSet[i], now, "second timeout, no therapist responded")
		if err != nil {
			res.Failed++
			s.logger.Error("second-timeout decline failed", "booking", secondSet[i].Code, "error", err)
			continue
		}
		if applied {
			res.Declined++
		}
	}

	s.metrics.ObserveSweep("first", "reassigned", res.Reassigned)
	s.metrics.ObserveSweep("first", "declined", firstDeclined)
	s.metrics.ObserveSweep("first", "failed", firstFailed)
	s.metrics.ObserveSweep("second", "declined", res.Declined-firstDeclined)
	s.metrics.ObserveSweep("second", "failed", res.Failed-firstFailed)

	s.logger.Info("timeout sweep complete",
		"first_examined", res.FirstExamined,
		"second_examined", res.SecondExamined,
		"reassigned", res.Reassigned,
		"declined", res.Declined,
		"failed", res.Failed,
	)
	return res, nil
}

// escalateFirst handles one booking whose direct round expired: fan out to
// fresh candidates when the customer wants a fallback, decline otherwise.
func (s *Sweeper) escalateFirst(ctx context.Context, b *booking.Booking, now time.Time, res *Result) error {
	if !b.FallbackOption {
		applied, err := s.declineFinal(ctx, b, now, "first timeout, no fallback requested")
		if err != nil {
			return err
		}
		if applied {
			res.Declined++
		}
		return nil
	}

	candidates, err := s.eligibility.FindEligibleTherapists(ctx, b, b.ContactedTherapistIDs)
	if err != nil {
		return fmt.Errorf("find candidates: %w", err)
	}
	if len(candidates) == 0 {
		applied, err := s.declineFinal(ctx, b, now, "first timeout, no alternate therapists available")
		if err != nil {
			return err
		}
		if applied {
			res.Declined++
		}
		return nil
	}

	ids := make([]uuid.UUID, len(candidates))
	for i, th := range candidates {
		ids[i] = th.ID
	}

	applied, err := s.bookings.MarkReassigned(ctx, b.ID, ids, now)
	if err != nil {
		return fmt.Errorf("mark reassigned: %w", err)
	}
	if !applied {
		// Confirmed, declined, or picked up by an overlapping sweep since
		// the candidate list was read.
		s.logger.Info("booking no longer awaiting first escalation", "booking", b.Code)
		return nil
	}
	if err := s.bookings.AppendHistory(ctx, b.ID, booking.StatusTimeoutReassigned, nil, "response timeout, contacting alternate therapists"); err != nil {
		s.logger.Error("history append failed", "booking", b.Code, "error", err)
	}

	b.Status = booking.StatusTimeoutReassigned
	s.notifier.NotifyCustomer(ctx, b, dispatch.KindSeekingAlternate)
	timeoutMinutes := int(s.settings.ResponseTimeout.Minutes())
	for i := range candidates {
		s.notifier.NotifyTherapist(ctx, b, &candidates[i], timeoutMinutes)
	}

	res.Reassigned++
	s.logger.Info("booking reassigned after timeout", "booking", b.Code, "candidates", len(candidates))
	return nil
}

func (s *Sweeper) declineFinal(ctx context.Context, b *booking.Booking, now time.Time, note string) (bool, error) {
	applied, err := s.bookings.MarkDeclinedByTimeout(ctx, b.ID, now)
	if err != nil {
		return false, fmt.Errorf("mark declined: %w", err)
	}
	if !applied {
		s.logger.Info("booking no longer awaiting final decline", "booking", b.Code)
		return false, nil
	}
	if err := s.bookings.AppendHistory(ctx, b.ID, booking.StatusDeclined, nil, note); err != nil {
		s.logger.Error("history append failed", "booking", b.Code, "error", err)
	}
	b.Status = booking.StatusDeclined
	s.notifier.NotifyCustomer(ctx, b, dispatch.KindFinalDeclined)
	return true, nil
}
