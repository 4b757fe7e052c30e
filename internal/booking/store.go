package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store provides persistence for bookings, status history and services.
//
// Status transitions are single conditional UPDATEs guarded by the
// current status; the affected-row count distinguishes "applied" from
// "someone got there first". That guard is the only concurrency control
// in the workflow, so every transition must go through these methods.
type Store struct {
	db DB
}

// NewStore creates a booking store.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

const bookingColumns = `id, code, service_id, duration_minutes, scheduled_at, address, lat, lng,
	gender_preference, fallback_option, price, therapist_fee, status, payment_status,
	therapist_id, responding_therapist_id, therapist_responded_at, escalated_at,
	contacted_therapist_ids, customer_name, customer_email, customer_phone,
	notes, room_number, parking, business_name, created_at, updated_at`

// Create inserts a new booking row in status requested.
func (s *Store) Create(ctx context.Context, b *Booking) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now
	if b.Status == "" {
		b.Status = StatusRequested
	}
	if b.PaymentStatus == "" {
		b.PaymentStatus = "pending"
	}
	if b.GenderPreference == "" {
		b.GenderPreference = GenderPreferenceAny
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO bookings (`+bookingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28)`,
		b.ID, b.Code, b.ServiceID, b.DurationMinutes, b.ScheduledAt, b.Address, b.Lat, b.Lng,
		b.GenderPreference, b.FallbackOption, b.Price, b.TherapistFee, string(b.Status), b.PaymentStatus,
		b.TherapistID, b.RespondingTherapistID, b.TherapistRespondedAt, b.EscalatedAt,
		uuidStrings(b.ContactedTherapistIDs), b.CustomerName, b.CustomerEmail, b.CustomerPhone,
		b.Notes, b.RoomNumber, b.Parking, b.BusinessName, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("booking: create: %w", err)
	}
	return nil
}

// GetByCode fetches a booking by its human-facing code.
func (s *Store) GetByCode(ctx context.Context, code string) (*Booking, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+bookingColumns+` FROM bookings WHERE code = $1`, code)
	if err != nil {
		return nil, fmt.Errorf("booking: get by code: %w", err)
	}
	defer rows.Close()
	return one(rows)
}

// GetByID fetches a booking by its internal id.
func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("booking: get by id: %w", err)
	}
	defer rows.Close()
	return one(rows)
}

// Confirm atomically transitions an awaiting booking to confirmed and
// records the responding therapist. Returns false when the booking was
// no longer awaiting a response (the caller lost the race or replayed).
func (s *Store) Confirm(ctx context.Context, code string, therapistID uuid.UUID, now time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE bookings
		SET status = 'confirmed', therapist_id = $2, responding_therapist_id = $2,
			therapist_responded_at = $3, updated_at = $3
		WHERE code = $1 AND status IN ('requested', 'timeout_reassigned', 'seeking_alternate')`,
		code, therapistID, now)
	if err != nil {
		return false, fmt.Errorf("booking: confirm: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// DeclineDirect finalizes a direct-round booking that does not want a
// fallback therapist. Only a booking still in requested may decline this
// way; escalated bookings are finalized by the timeout sweep instead.
func (s *Store) DeclineDirect(ctx context.Context, code string, therapistID uuid.UUID, now time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE bookings
		SET status = 'declined', responding_therapist_id = $2,
			therapist_responded_at = $3, updated_at = $3
		WHERE code = $1 AND status = 'requested'`,
		code, therapistID, now)
	if err != nil {
		return false, fmt.Errorf("booking: decline: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// AssignTherapist records the initial assignment and the contacted set.
func (s *Store) AssignTherapist(ctx context.Context, id uuid.UUID, therapistID uuid.UUID, now time.Time) error {
	_, err := s.db.Exec(ctx, `
		UPDATE bookings
		SET therapist_id = $2,
			contacted_therapist_ids = array_append(contacted_therapist_ids, $3),
			updated_at = $4
		WHERE id = $1`,
		id, therapistID, therapistID.String(), now)
	if err != nil {
		return fmt.Errorf("booking: assign therapist: %w", err)
	}
	return nil
}

// MarkReassigned transitions a first-timeout booking into the fan-out
// round and extends the contacted set with the new candidates. The
// status guard keeps overlapping sweeps from double-firing.
func (s *Store) MarkReassigned(ctx context.Context, id uuid.UUID, contacted []uuid.UUID, now time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE bookings
		SET status = 'timeout_reassigned', escalated_at = $3,
			contacted_therapist_ids = contacted_therapist_ids || $2,
			updated_at = $3
		WHERE id = $1 AND status = 'requested'`,
		id, uuidStrings(contacted), now)
	if err != nil {
		return false, fmt.Errorf("booking: mark reassigned: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkDeclinedByTimeout finalizes an awaiting booking as declined.
func (s *Store) MarkDeclinedByTimeout(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE bookings
		SET status = 'declined', updated_at = $2
		WHERE id = $1 AND status IN ('requested', 'timeout_reassigned', 'seeking_alternate')`,
		id, now)
	if err != nil {
		return false, fmt.Errorf("booking: mark declined: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// AppendHistory writes an audit row. actorTherapistID is nil for
// system-driven transitions.
func (s *Store) AppendHistory(ctx context.Context, bookingID uuid.UUID, status Status, actorTherapistID *uuid.UUID, note string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO booking_status_history (id, booking_id, status, actor_therapist_id, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.New(), bookingID, string(status), actorTherapistID, note, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("booking: append history: %w", err)
	}
	return nil
}

// ListFirstTimeouts returns requested bookings with no therapist response
// created before the cutoff.
func (s *Store) ListFirstTimeouts(ctx context.Context, cutoff time.Time) ([]Booking, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE status = 'requested' AND therapist_responded_at IS NULL AND created_at < $1
		ORDER BY created_at ASC`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("booking: list first timeouts: %w", err)
	}
	defer rows.Close()
	return scanBookings(rows)
}

// ListSecondTimeouts returns escalated bookings past the second cutoff.
// anchor selects which timestamp the cutoff applies to: "created"
// compares created_at, "escalated" compares escalated_at.
func (s *Store) ListSecondTimeouts(ctx context.Context, cutoff time.Time, anchor string) ([]Booking, error) {
	column := "created_at"
	if anchor == "escalated" {
		column = "escalated_at"
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE status IN ('timeout_reassigned', 'seeking_alternate')
			AND `+column+` IS NOT NULL AND `+column+` < $1
		ORDER BY created_at ASC`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("booking: list second timeouts: %w", err)
	}
	defer rows.Close()
	return scanBookings(rows)
}

// ListForTherapistOnDate returns the therapist's bookings scheduled in
// [dayStart, dayEnd) that still occupy their slot.
func (s *Store) ListForTherapistOnDate(ctx context.Context, therapistID uuid.UUID, dayStart, dayEnd time.Time) ([]Booking, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE therapist_id = $1 AND scheduled_at >= $2 AND scheduled_at < $3
			AND status NOT IN ('declined', 'cancelled')
		ORDER BY scheduled_at ASC`, therapistID, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("booking: list for therapist on date: %w", err)
	}
	defer rows.Close()
	return scanBookings(rows)
}

// GetService fetches a bookable offering.
func (s *Store) GetService(ctx context.Context, id uuid.UUID) (*Service, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, name, base_price, min_duration_minutes, after_buffer_minutes, is_active
		FROM services WHERE id = $1`, id)

	var svc Service
	if err := row.Scan(&svc.ID, &svc.Name, &svc.BasePrice, &svc.MinDurationMinutes, &svc.AfterBufferMinutes, &svc.IsActive); err != nil {
		if isNoRows(err) {
			return nil, ErrServiceNotFound
		}
		return nil, fmt.Errorf("booking: get service: %w", err)
	}
	return &svc, nil
}

func one(rows pgx.Rows) (*Booking, error) {
	bookings, err := scanBookings(rows)
	if err != nil {
		return nil, err
	}
	if len(bookings) == 0 {
		return nil, ErrBookingNotFound
	}
	return &bookings[0], nil
}

func scanBookings(rows pgx.Rows) ([]Booking, error) {
	var result []Booking
	for rows.Next() {
		var b Booking
		var status string
		var contacted []string
		err := rows.Scan(
			&b.ID, &b.Code, &b.ServiceID, &b.DurationMinutes, &b.ScheduledAt, &b.Address, &b.Lat, &b.Lng,
			&b.GenderPreference, &b.FallbackOption, &b.Price, &b.TherapistFee, &status, &b.PaymentStatus,
			&b.TherapistID, &b.RespondingTherapistID, &b.TherapistRespondedAt, &b.EscalatedAt,
			&contacted, &b.CustomerName, &b.CustomerEmail, &b.CustomerPhone,
			&b.Notes, &b.RoomNumber, &b.Parking, &b.BusinessName, &b.CreatedAt, &b.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("booking: scan: %w", err)
		}
		b.Status = Status(status)
		b.ContactedTherapistIDs, err = parseUUIDs(contacted)
		if err != nil {
			return nil, err
		}
		result = append(result, b)
	}
	return result, rows.Err()
}

// uuidStrings converts ids for the text[] contacted column.
func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}

func parseUUIDs(values []string) ([]uuid.UUID, error) {
	out := make([]uuid.UUID, 0, len(values))
	for _, v := range values {
		id, err := uuid.Parse(v)
		if err != nil {
			return nil, fmt.Errorf("booking: malformed contacted id %q: %w", v, err)
		}
		out = append(out, id)
	}
	return out, nil
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
