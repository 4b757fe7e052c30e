package therapist

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// DB abstracts the pgx query interface for testing.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store provides read access to therapist profiles and availability.
// This subsystem never writes therapist data.
type Store struct {
	db DB
}

// NewStore creates a therapist store.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

const therapistColumns = `t.id, t.name, t.email, t.phone, t.gender, t.lat, t.lng,
	t.service_radius_km, t.bio, t.is_active, t.created_at`

// ListActiveForService returns active therapists linked to the service,
// in stable creation order. The join can yield duplicates when a
// therapist is linked twice; callers dedupe by id.
func (s *Store) ListActiveForService(ctx context.Context, serviceID uuid.UUID) ([]Therapist, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+therapistColumns+`
		FROM therapists t
		JOIN therapist_services ts ON ts.therapist_id = t.id
		WHERE ts.service_id = $1 AND t.is_active = TRUE
		ORDER BY t.created_at ASC`, serviceID)
	if err != nil {
		return nil, fmt.Errorf("therapist: list for service: %w", err)
	}
	defer rows.Close()
	return scanTherapists(rows)
}

// GetByID fetches one therapist.
func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (*Therapist, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+therapistColumns+` FROM therapists t WHERE t.id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("therapist: get by id: %w", err)
	}
	defer rows.Close()
	therapists, err := scanTherapists(rows)
	if err != nil {
		return nil, err
	}
	if len(therapists) == 0 {
		return nil, ErrTherapistNotFound
	}
	return &therapists[0], nil
}

// FindByPhone resolves an inbound sender to a therapist. candidates holds
// the raw number plus its normalized forms; the first match wins.
func (s *Store) FindByPhone(ctx context.Context, candidates []string) (*Therapist, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+therapistColumns+` FROM therapists t
		WHERE t.phone = ANY($1) AND t.is_active = TRUE
		LIMIT 1`, candidates)
	if err != nil {
		return nil, fmt.Errorf("therapist: find by phone: %w", err)
	}
	defer rows.Close()
	therapists, err := scanTherapists(rows)
	if err != nil {
		return nil, err
	}
	if len(therapists) == 0 {
		return nil, ErrTherapistNotFound
	}
	return &therapists[0], nil
}

// ListAvailability returns the therapist's working windows for one
// day-of-week (0 = Sunday).
func (s *Store) ListAvailability(ctx context.Context, therapistID uuid.UUID, dayOfWeek int) ([]Availability, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, therapist_id, day_of_week, start_time, end_time
		FROM availability
		WHERE therapist_id = $1 AND day_of_week = $2
		ORDER BY start_time ASC`, therapistID, dayOfWeek)
	if err != nil {
		return nil, fmt.Errorf("therapist: list availability: %w", err)
	}
	defer rows.Close()

	var result []Availability
	for rows.Next() {
		var a Availability
		if err := rows.Scan(&a.ID, &a.TherapistID, &a.DayOfWeek, &a.StartTime, &a.EndTime); err != nil {
			return nil, fmt.Errorf("therapist: scan availability: %w", err)
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

func scanTherapists(rows pgx.Rows) ([]Therapist, error) {
	var result []Therapist
	for rows.Next() {
		var t Therapist
		err := rows.Scan(
			&t.ID, &t.Name, &t.Email, &t.Phone, &t.Gender, &t.Lat, &t.Lng,
			&t.ServiceRadiusKm, &t.Bio, &t.IsActive, &t.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("therapist: scan: %w", err)
		}
		result = append(result, t)
	}
	return result, rows.Err()
}
