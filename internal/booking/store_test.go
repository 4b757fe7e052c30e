package booking

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (pgxmock.PgxPoolIface, *Store) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewStore(mock)
}

func TestConfirmApplied(t *testing.T) {
	mock, store := newMockStore(t)
	therapistID := uuid.New()
	now := time.Now().UTC()

	mock.ExpectExec("UPDATE bookings").
		WithArgs("RMM202609-0001", therapistID, now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	applied, err := store.Confirm(context.Background(), "RMM202609-0001", therapistID, now)
	require.NoError(t, err)
	assert.True(t, applied)
}

func TestConfirmAlreadyResolved(t *testing.T) {
	mock, store := newMockStore(t)
	therapistID := uuid.New()
	now := time.Now().UTC()

	// Status guard matched no rows: another therapist confirmed first.
	mock.ExpectExec("UPDATE bookings").
		WithArgs("RMM202609-0001", therapistID, now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	applied, err := store.Confirm(context.Background(), "RMM202609-0001", therapistID, now)
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestDeclineDirectOnlyFromRequested(t *testing.T) {
	mock, store := newMockStore(t)
	therapistID := uuid.New()
	now := time.Now().UTC()

	mock.ExpectExec("UPDATE bookings").
		WithArgs("RMM202609-0002", therapistID, now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	applied, err := store.DeclineDirect(context.Background(), "RMM202609-0002", therapistID, now)
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestMarkReassignedGuardsStatus(t *testing.T) {
	mock, store := newMockStore(t)
	id := uuid.New()
	candidates := []uuid.UUID{uuid.New(), uuid.New()}
	now := time.Now().UTC()

	mock.ExpectExec("UPDATE bookings").
		WithArgs(id, uuidStrings(candidates), now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	applied, err := store.MarkReassigned(context.Background(), id, candidates, now)
	require.NoError(t, err)
	assert.True(t, applied)
}

func TestMarkDeclinedByTimeout(t *testing.T) {
	mock, store := newMockStore(t)
	id := uuid.New()
	now := time.Now().UTC()

	mock.ExpectExec("UPDATE bookings").
		WithArgs(id, now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	applied, err := store.MarkDeclinedByTimeout(context.Background(), id, now)
	require.NoError(t, err)
	assert.True(t, applied)
}

func TestAppendHistory(t *testing.T) {
	mock, store := newMockStore(t)
	bookingID := uuid.New()

	mock.ExpectExec("INSERT INTO booking_status_history").
		WithArgs(pgxmock.AnyArg(), bookingID, "confirmed", (*uuid.UUID)(nil), "accepted via sms", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := store.AppendHistory(context.Background(), bookingID, StatusConfirmed, nil, "accepted via sms")
	require.NoError(t, err)
}

func TestGetByCodeNotFound(t *testing.T) {
	mock, store := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM bookings WHERE code").
		WithArgs("RMM209912-9999").
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	_, err := store.GetByCode(context.Background(), "RMM209912-9999")
	assert.ErrorIs(t, err, ErrBookingNotFound)
}

func TestStatusAwaiting(t *testing.T) {
	assert.True(t, StatusRequested.Awaiting())
	assert.True(t, StatusTimeoutReassigned.Awaiting())
	assert.True(t, StatusSeekingAlternate.Awaiting())
	assert.False(t, StatusConfirmed.Awaiting())
	assert.False(t, StatusDeclined.Awaiting())
	assert.False(t, StatusCancelled.Awaiting())
	assert.False(t, StatusCompleted.Awaiting())
}
