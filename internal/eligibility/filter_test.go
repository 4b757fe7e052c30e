package eligibility

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmmassage/dispatch/internal/booking"
	"github.com/rmmassage/dispatch/internal/therapist"
)

func allDayWindow(th therapist.Therapist) therapist.Availability {
	return therapist.Availability{TherapistID: th.ID, DayOfWeek: 1, StartTime: "08:00", EndTime: "19:00"}
}

func eligibilityBooking() *booking.Booking {
	lat, lng := -33.87, 151.21
	return &booking.Booking{
		ID:               uuid.New(),
		Code:             "RMM202609-0001",
		ServiceID:        uuid.New(),
		DurationMinutes:  60,
		ScheduledAt:      testMonday.Add(10 * time.Hour),
		Lat:              &lat,
		Lng:              &lng,
		GenderPreference: booking.GenderPreferenceAny,
		Status:           booking.StatusRequested,
	}
}

func newDirectory(therapists ...therapist.Therapist) *stubDirectory {
	windows := make(map[uuid.UUID][]therapist.Availability, len(therapists))
	for _, th := range therapists {
		windows[th.ID] = []therapist.Availability{allDayWindow(th)}
	}
	return &stubDirectory{therapists: therapists, windows: windows}
}

func TestGenderPreferenceExcludes(t *testing.T) {
	male := therapist.Therapist{ID: uuid.New(), Name: "Tom", Gender: "male", Lat: -33.87, Lng: 151.21, ServiceRadiusKm: 50, IsActive: true}
	female := therapist.Therapist{ID: uuid.New(), Name: "Mia", Gender: "female", Lat: -33.87, Lng: 151.21, ServiceRadiusKm: 50, IsActive: true}
	f := NewFilter(newDirectory(male, female), &stubBookings{}, testSettings(), nil)

	b := eligibilityBooking()
	b.GenderPreference = booking.GenderPreferenceFemale

	eligible, err := f.FindEligibleTherapists(context.Background(), b, nil)
	require.NoError(t, err)
	require.Len(t, eligible, 1)
	assert.Equal(t, female.ID, eligible[0].ID)
}

func TestServiceRadiusBoundaryInclusive(t *testing.T) {
	const degPerKm = 1.0 / 111.19492664455873
	b := eligibilityBooking()

	within := therapist.Therapist{ID: uuid.New(), Name: "Near", Gender: "female", Lat: *b.Lat + 9.9*degPerKm, Lng: *b.Lng, ServiceRadiusKm: 10, IsActive: true}
	beyond := therapist.Therapist{ID: uuid.New(), Name: "Far", Gender: "female", Lat: *b.Lat + 10.1*degPerKm, Lng: *b.Lng, ServiceRadiusKm: 10, IsActive: true}

	// Radius set to the exact computed distance: eligible because the
	// comparison is distance <= radius.
	exact := therapist.Therapist{ID: uuid.New(), Name: "Edge", Gender: "female", Lat: *b.Lat + 12*degPerKm, Lng: *b.Lng, IsActive: true}
	exact.ServiceRadiusKm = Distance(*b.Lat, *b.Lng, exact.Lat, exact.Lng)

	f := NewFilter(newDirectory(within, beyond, exact), &stubBookings{}, testSettings(), nil)

	eligible, err := f.FindEligibleTherapists(context.Background(), b, nil)
	require.NoError(t, err)
	ids := make([]uuid.UUID, 0, len(eligible))
	for _, th := range eligible {
		ids = append(ids, th.ID)
	}
	assert.Contains(t, ids, within.ID)
	assert.Contains(t, ids, exact.ID)
	assert.NotContains(t, ids, beyond.ID)
}

func TestExcludeAlreadyContacted(t *testing.T) {
	first := therapist.Therapist{ID: uuid.New(), Name: "First", Gender: "male", Lat: -33.87, Lng: 151.21, ServiceRadiusKm: 50, IsActive: true}
	second := therapist.Therapist{ID: uuid.New(), Name: "Second", Gender: "female", Lat: -33.87, Lng: 151.21, ServiceRadiusKm: 50, IsActive: true}
	f := NewFilter(newDirectory(first, second), &stubBookings{}, testSettings(), nil)

	b := eligibilityBooking()
	eligible, err := f.FindEligibleTherapists(context.Background(), b, []uuid.UUID{first.ID})
	require.NoError(t, err)
	require.Len(t, eligible, 1)
	assert.Equal(t, second.ID, eligible[0].ID)
}

func TestDuplicateJoinRowsDeduplicated(t *testing.T) {
	th := therapist.Therapist{ID: uuid.New(), Name: "Mia", Gender: "female", Lat: -33.87, Lng: 151.21, ServiceRadiusKm: 50, IsActive: true}
	dir := newDirectory(th)
	dir.therapists = append(dir.therapists, th) // duplicated join row
	f := NewFilter(dir, &stubBookings{}, testSettings(), nil)

	eligible, err := f.FindEligibleTherapists(context.Background(), eligibilityBooking(), nil)
	require.NoError(t, err)
	assert.Len(t, eligible, 1)
}

func TestNoAvailabilityExcludes(t *testing.T) {
	busy := therapist.Therapist{ID: uuid.New(), Name: "Busy", Gender: "female", Lat: -33.87, Lng: 151.21, ServiceRadiusKm: 50, IsActive: true}
	dir := &stubDirectory{
		therapists: []therapist.Therapist{busy},
		windows:    map[uuid.UUID][]therapist.Availability{}, // no working windows
	}
	f := NewFilter(dir, &stubBookings{}, testSettings(), nil)

	eligible, err := f.FindEligibleTherapists(context.Background(), eligibilityBooking(), nil)
	require.NoError(t, err)
	assert.Empty(t, eligible)
}

func TestMissingCoordinatesSkipsRadiusCheck(t *testing.T) {
	remote := therapist.Therapist{ID: uuid.New(), Name: "Remote", Gender: "female", Lat: -37.81, Lng: 144.96, ServiceRadiusKm: 5, IsActive: true}
	f := NewFilter(newDirectory(remote), &stubBookings{}, testSettings(), nil)

	b := eligibilityBooking()
	b.Lat, b.Lng = nil, nil

	eligible, err := f.FindEligibleTherapists(context.Background(), b, nil)
	require.NoError(t, err)
	assert.Len(t, eligible, 1)
}
