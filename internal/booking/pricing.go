package booking

import (
	"time"

	"github.com/rmmassage/dispatch/internal/config"
)

// Quote computes the customer price and the therapist fee for a booking.
// Service base price and therapist rates are hourly; both scale linearly
// with duration. A booking starting outside business hours pays the
// after-hours therapist rate.
func Quote(svc *Service, settings config.Business, scheduledAt time.Time, durationMinutes int) (price, fee float64) {
	hours := float64(durationMinutes) / 60

	rate := settings.DaytimeHourlyRate
	if h := scheduledAt.Hour(); h < settings.OpeningHour || h >= settings.ClosingHour {
		rate = settings.AfterHoursHourlyRate
	}

	return svc.BasePrice * hours, rate * hours
}
