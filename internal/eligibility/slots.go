package eligibility

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rmmassage/dispatch/internal/booking"
	"github.com/rmmassage/dispatch/internal/therapist"
)

// interval is a half-open occupied window in minutes since midnight.
type interval struct {
	start int
	end   int
}

func (iv interval) overlaps(other interval) bool {
	return iv.start < other.end && other.start < iv.end
}

// AvailableSlots computes the free hourly "HH:MM" slots for a therapist
// on a calendar date, for a service of the given duration. Business
// open/close hours bound the candidates; the therapist's weekly window
// and existing bookings (padded with the configured buffers) carve them
// down. Same-day minimum-advance filtering is left to the caller: apply
// FilterMinAdvance when rendering to an end user.
func (f *Filter) AvailableSlots(ctx context.Context, th *therapist.Therapist, date time.Time, durationMinutes int) ([]string, error) {
	windows, err := f.therapists.ListAvailability(ctx, th.ID, int(date.Weekday()))
	if err != nil {
		return nil, err
	}
	if len(windows) == 0 {
		return nil, nil
	}

	occupied, err := f.occupiedIntervals(ctx, th.ID, date)
	if err != nil {
		return nil, err
	}

	var slots []string
	for hour := f.settings.OpeningHour; hour < f.settings.ClosingHour; hour++ {
		slotStart := hour * 60
		if !insideAnyWindow(windows, slotStart, durationMinutes) {
			continue
		}
		if f.slotFree(slotStart, durationMinutes, occupied) {
			slots = append(slots, fmt.Sprintf("%02d:%02d", slotStart/60, slotStart%60))
		}
	}
	return slots, nil
}

// SlotAvailableAt checks a single exact start time, which need not fall
// on an hourly boundary. Used when matching a booking's chosen slot
// against a candidate therapist.
func (f *Filter) SlotAvailableAt(ctx context.Context, th *therapist.Therapist, startAt time.Time, durationMinutes int) (bool, error) {
	windows, err := f.therapists.ListAvailability(ctx, th.ID, int(startAt.Weekday()))
	if err != nil {
		return false, err
	}
	if len(windows) == 0 {
		return false, nil
	}

	slotStart := minutesOfDay(startAt)
	if slotStart < f.settings.OpeningHour*60 || slotStart >= f.settings.ClosingHour*60 {
		return false, nil
	}
	if !insideAnyWindow(windows, slotStart, durationMinutes) {
		return false, nil
	}

	occupied, err := f.occupiedIntervals(ctx, th.ID, startAt)
	if err != nil {
		return false, err
	}
	return f.slotFree(slotStart, durationMinutes, occupied), nil
}

// occupiedIntervals loads the therapist's bookings for date's calendar
// day and pads each with the before/after buffers. A booking's own
// service can override the after buffer.
func (f *Filter) occupiedIntervals(ctx context.Context, therapistID uuid.UUID, date time.Time) ([]interval, error) {
	dayStart, dayEnd := dayBounds(date)
	existing, err := f.bookings.ListForTherapistOnDate(ctx, therapistID, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}

	occupied := make([]interval, 0, len(existing))
	for i := range existing {
		b := &existing[i]
		after := f.settings.AfterBufferMinutes
		svc, err := f.bookings.GetService(ctx, b.ServiceID)
		if err != nil {
			if !errors.Is(err, booking.ErrServiceNotFound) {
				return nil, err
			}
		} else if svc.AfterBufferMinutes != nil {
			after = *svc.AfterBufferMinutes
		}
		start := minutesOfDay(b.ScheduledAt.In(date.Location()))
		occupied = append(occupied, interval{
			start: start - f.settings.BeforeBufferMinutes,
			end:   start + b.DurationMinutes + after,
		})
	}
	return occupied, nil
}

// slotFree applies the new slot's occupied window, including the after
// buffer, against every existing padded interval.
func (f *Filter) slotFree(slotStart, durationMinutes int, occupied []interval) bool {
	slot := interval{
		start: slotStart,
		end:   slotStart + durationMinutes + f.settings.AfterBufferMinutes,
	}
	for _, iv := range occupied {
		if slot.overlaps(iv) {
			return false
		}
	}
	return true
}

func insideAnyWindow(windows []therapist.Availability, slotStart, durationMinutes int) bool {
	for _, w := range windows {
		wStart, err := parseHHMM(w.StartTime)
		if err != nil {
			continue
		}
		wEnd, err := parseHHMM(w.EndTime)
		if err != nil {
			continue
		}
		if slotStart >= wStart && slotStart+durationMinutes <= wEnd {
			return true
		}
	}
	return false
}

// FilterMinAdvance drops same-day slots earlier than now plus the
// minimum advance, rounded up to the next whole hour. Dates other than
// today pass through unchanged.
func FilterMinAdvance(slots []string, date, now time.Time, minAdvanceHours int) []string {
	if !sameDay(date, now) {
		return slots
	}
	threshold := minAdvanceThreshold(now, minAdvanceHours)
	thresholdMinutes := minutesOfDay(threshold)
	if !sameDay(threshold, now) {
		// Advance window spills into tomorrow: nothing today qualifies.
		return nil
	}

	var out []string
	for _, s := range slots {
		m, err := parseHHMM(s)
		if err != nil {
			continue
		}
		if m >= thresholdMinutes {
			out = append(out, s)
		}
	}
	return out
}

// MeetsMinAdvance reports whether a chosen start time satisfies the
// minimum advance requirement. Enforced server-side on booking creation;
// the client-side slot rendering applies the same rule.
func MeetsMinAdvance(scheduledAt, now time.Time, minAdvanceHours int) bool {
	return !scheduledAt.Before(minAdvanceThreshold(now, minAdvanceHours))
}

// minAdvanceThreshold is now plus the advance window, rounded up to the
// next whole hour.
func minAdvanceThreshold(now time.Time, minAdvanceHours int) time.Time {
	t := now.Add(time.Duration(minAdvanceHours) * time.Hour)
	rounded := t.Truncate(time.Hour)
	if rounded.Before(t) {
		rounded = rounded.Add(time.Hour)
	}
	return rounded
}

func parseHHMM(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("eligibility: malformed time %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("eligibility: time %q out of range", s)
	}
	return h*60 + m, nil
}

func minutesOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

func dayBounds(date time.Time) (time.Time, time.Time) {
	y, m, d := date.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, date.Location())
	return start, start.Add(24 * time.Hour)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
