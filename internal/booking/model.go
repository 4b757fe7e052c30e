package booking

import (
	"time"

	"github.com/google/uuid"
)

// Status is the booking state machine's discriminant.
type Status string

const (
	StatusRequested         Status = "requested"
	StatusTimeoutReassigned Status = "timeout_reassigned"
	StatusSeekingAlternate  Status = "seeking_alternate"
	StatusConfirmed         Status = "confirmed"
	StatusDeclined          Status = "declined"
	StatusCancelled         Status = "cancelled"
	StatusCompleted         Status = "completed"
)

// AwaitingStatuses are the states in which a therapist response may still
// be applied. Everything else is terminal for the response path.
var AwaitingStatuses = []Status{StatusRequested, StatusTimeoutReassigned, StatusSeekingAlternate}

// Awaiting reports whether a response can still be applied in this state.
func (s Status) Awaiting() bool {
	switch s {
	case StatusRequested, StatusTimeoutReassigned, StatusSeekingAlternate:
		return true
	}
	return false
}

// Gender preference values accepted on a booking.
const (
	GenderPreferenceMale   = "male"
	GenderPreferenceFemale = "female"
	GenderPreferenceAny    = "any"
)

// Booking is one customer service request.
type Booking struct {
	ID                    uuid.UUID
	Code                  string
	ServiceID             uuid.UUID
	DurationMinutes       int
	ScheduledAt           time.Time
	Address               string
	Lat                   *float64
	Lng                   *float64
	GenderPreference      string
	FallbackOption        bool
	Price                 float64
	TherapistFee          float64
	Status                Status
	PaymentStatus         string
	TherapistID           *uuid.UUID
	RespondingTherapistID *uuid.UUID
	TherapistRespondedAt  *time.Time
	EscalatedAt           *time.Time
	ContactedTherapistIDs []uuid.UUID
	CustomerName          string
	CustomerEmail         string
	CustomerPhone         string
	Notes                 string
	RoomNumber            string
	Parking               string
	BusinessName          string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// HasCoordinates reports whether the booking address was geocoded.
func (b *Booking) HasCoordinates() bool {
	return b.Lat != nil && b.Lng != nil
}

// Contacted reports whether the given therapist was already messaged for
// this booking (initial assignment or a fan-out round).
func (b *Booking) Contacted(id uuid.UUID) bool {
	for _, c := range b.ContactedTherapistIDs {
		if c == id {
			return true
		}
	}
	return false
}

// Service is a bookable offering. Read-only from this subsystem.
type Service struct {
	ID                 uuid.UUID
	Name               string
	BasePrice          float64
	MinDurationMinutes int
	// AfterBufferMinutes overrides the business-wide after-service buffer
	// when set.
	AfterBufferMinutes *int
	IsActive           bool
}
