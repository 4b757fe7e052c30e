package eligibility

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rmmassage/dispatch/internal/booking"
	"github.com/rmmassage/dispatch/internal/config"
	"github.com/rmmassage/dispatch/internal/therapist"
	"github.com/rmmassage/dispatch/pkg/logging"
)

// TherapistDirectory provides therapist profiles and working windows.
type TherapistDirectory interface {
	ListActiveForService(ctx context.Context, serviceID uuid.UUID) ([]therapist.Therapist, error)
	ListAvailability(ctx context.Context, therapistID uuid.UUID, dayOfWeek int) ([]therapist.Availability, error)
}

// BookingSource provides the bookings and services needed for slot checks.
type BookingSource interface {
	ListForTherapistOnDate(ctx context.Context, therapistID uuid.UUID, dayStart, dayEnd time.Time) ([]booking.Booking, error)
	GetService(ctx context.Context, id uuid.UUID) (*booking.Service, error)
}

// Filter computes which therapists are eligible to serve a booking:
// linked to the service and active, matching the gender preference,
// within their service radius of the address, and free at the booking's
// start time.
type Filter struct {
	therapists TherapistDirectory
	bookings   BookingSource
	settings   config.Business
	logger     *logging.Logger
}

// NewFilter creates an eligibility filter.
func NewFilter(therapists TherapistDirectory, bookings BookingSource, settings config.Business, logger *logging.Logger) *Filter {
	if logger == nil {
		logger = logging.Default()
	}
	return &Filter{
		therapists: therapists,
		bookings:   bookings,
		settings:   settings,
		logger:     logger,
	}
}

// FindEligibleTherapists returns every eligible therapist for the
// booking, excluding the given ids (already contacted in an earlier
// round). Order follows the directory's fetch order; no ranking is
// applied. An empty result means no coverage and is not an error.
func (f *Filter) FindEligibleTherapists(ctx context.Context, b *booking.Booking, exclude []uuid.UUID) ([]therapist.Therapist, error) {
	candidates, err := f.therapists.ListActiveForService(ctx, b.ServiceID)
	if err != nil {
		return nil, fmt.Errorf("eligibility: list candidates: %w", err)
	}

	excluded := make(map[uuid.UUID]bool, len(exclude))
	for _, id := range exclude {
		excluded[id] = true
	}

	seen := make(map[uuid.UUID]bool, len(candidates))
	var eligible []therapist.Therapist
	for i := range candidates {
		th := candidates[i]
		if excluded[th.ID] || seen[th.ID] {
			continue
		}
		if b.GenderPreference != "" && b.GenderPreference != booking.GenderPreferenceAny && th.Gender != b.GenderPreference {
			continue
		}
		if b.HasCoordinates() {
			km := Distance(*b.Lat, *b.Lng, th.Lat, th.Lng)
			if km > th.ServiceRadiusKm {
				continue
			}
		}
		free, err := f.SlotAvailableAt(ctx, &th, b.ScheduledAt, b.DurationMinutes)
		if err != nil {
			return nil, fmt.Errorf("eligibility: slot check for %s: %w", th.ID, err)
		}
		if !free {
			continue
		}
		seen[th.ID] = true
		eligible = append(eligible, th)
	}

	f.logger.Debug("eligibility: filtered candidates",
		"booking_code", b.Code,
		"candidates", len(candidates),
		"eligible", len(eligible),
		"excluded", len(exclude),
	)
	return eligible, nil
}
