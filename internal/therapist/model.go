package therapist

import (
	"time"

	"github.com/google/uuid"
)

// Therapist is a service provider profile.
type Therapist struct {
	ID              uuid.UUID
	Name            string
	Email           string
	Phone           string
	Gender          string
	Lat             float64
	Lng             float64
	ServiceRadiusKm float64
	Bio             string
	IsActive        bool
	CreatedAt       time.Time
}

// Availability is a recurring weekly working window. Times are
// zero-padded 24-hour "HH:MM" strings; overlap between windows is
// assumed pre-validated upstream.
type Availability struct {
	ID          uuid.UUID
	TherapistID uuid.UUID
	DayOfWeek   int
	StartTime   string
	EndTime     string
}
