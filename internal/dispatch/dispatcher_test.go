package dispatch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmmassage/dispatch/internal/booking"
	"github.com/rmmassage/dispatch/internal/notify"
	"github.com/rmmassage/dispatch/internal/therapist"
)

type capturedEmail struct {
	msg notify.EmailMessage
}

type fakeEmailSender struct {
	mu   sync.Mutex
	err  error
	sent []capturedEmail
}

func (f *fakeEmailSender) Send(_ context.Context, msg notify.EmailMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, capturedEmail{msg: msg})
	return nil
}

type fakeSMSSender struct {
	mu     sync.Mutex
	err    error
	to     []string
	bodies []string
}

func (f *fakeSMSSender) SendSMS(_ context.Context, to, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.to = append(f.to, to)
	f.bodies = append(f.bodies, body)
	return nil
}

func dispatchBooking() *booking.Booking {
	return &booking.Booking{
		ID:              uuid.New(),
		Code:            "RMM202609-0042",
		DurationMinutes: 90,
		ScheduledAt:     time.Date(2026, 9, 14, 14, 0, 0, 0, time.UTC),
		Address:         "12 Example St, Surry Hills",
		Price:           135,
		TherapistFee:    99.50,
		CustomerName:    "Alice",
		CustomerEmail:   "alice@example.com",
		CustomerPhone:   "0400111222",
	}
}

func dispatchTherapist() *therapist.Therapist {
	return &therapist.Therapist{
		ID:    uuid.New(),
		Name:  "Mia",
		Email: "mia@example.com",
		Phone: "0412345678",
	}
}

func TestNotifyTherapistIncludesLinksAndFee(t *testing.T) {
	email := &fakeEmailSender{}
	sms := &fakeSMSSender{}
	d := NewDispatcher(email, sms, "https://book.example.com", nil)

	b := dispatchBooking()
	th := dispatchTherapist()
	res := d.NotifyTherapist(context.Background(), b, th, 60)

	assert.True(t, res.EmailSent)
	assert.True(t, res.SMSSent)

	require.Len(t, email.sent, 1)
	body := email.sent[0].msg.Body
	assert.Contains(t, body, "RMM202609-0042")
	assert.Contains(t, body, "$99.50")
	assert.Contains(t, body, "action=accept")
	assert.Contains(t, body, "action=decline")
	assert.Contains(t, body, "booking=RMM202609-0042")
	assert.Contains(t, body, "therapist="+th.ID.String())
	assert.Contains(t, body, "within 60 minutes")

	require.Len(t, sms.bodies, 1)
	assert.Contains(t, sms.bodies[0], "ACCEPT RMM202609-0042")
	assert.Contains(t, sms.bodies[0], "DECLINE RMM202609-0042")
	assert.Equal(t, "+61412345678", sms.to[0])
}

func TestCustomerTemplatesNeverIncludeTherapistFee(t *testing.T) {
	b := dispatchBooking()
	for _, kind := range []CustomerKind{KindRequestReceived, KindBookingConfirmed, KindSeekingAlternate, KindFinalDeclined} {
		email := &fakeEmailSender{}
		sms := &fakeSMSSender{}
		d := NewDispatcher(email, sms, "https://book.example.com", nil)

		res := d.NotifyCustomer(context.Background(), b, kind)
		assert.True(t, res.EmailSent, "kind %s", kind)
		assert.True(t, res.SMSSent, "kind %s", kind)

		require.Len(t, email.sent, 1)
		assert.NotContains(t, email.sent[0].msg.Body, "99.50", "kind %s leaks therapist fee", kind)
		assert.NotContains(t, sms.bodies[0], "99.50", "kind %s leaks therapist fee", kind)
	}
}

func TestCustomerConfirmedIncludesPriceAndTherapist(t *testing.T) {
	email := &fakeEmailSender{}
	d := NewDispatcher(email, &fakeSMSSender{}, "https://book.example.com", nil)

	res := d.NotifyCustomerConfirmed(context.Background(), dispatchBooking(), dispatchTherapist())
	assert.True(t, res.EmailSent)

	require.Len(t, email.sent, 1)
	assert.Contains(t, email.sent[0].msg.Body, "$135.00")
	assert.Contains(t, email.sent[0].msg.Body, "Mia")
}

func TestChannelsAreIndependentBestEffort(t *testing.T) {
	email := &fakeEmailSender{err: errors.New("smtp down")}
	sms := &fakeSMSSender{}
	d := NewDispatcher(email, sms, "https://book.example.com", nil)

	res := d.NotifyTherapist(context.Background(), dispatchBooking(), dispatchTherapist(), 60)
	assert.False(t, res.EmailSent)
	assert.True(t, res.SMSSent)
}

func TestMissingContactSkipsChannel(t *testing.T) {
	email := &fakeEmailSender{}
	sms := &fakeSMSSender{}
	d := NewDispatcher(email, sms, "https://book.example.com", nil)

	th := dispatchTherapist()
	th.Phone = ""
	res := d.NotifyTherapist(context.Background(), dispatchBooking(), th, 60)
	assert.True(t, res.EmailSent)
	assert.False(t, res.SMSSent)
	assert.Empty(t, sms.bodies)
}

func TestResponseURLEncoding(t *testing.T) {
	id := uuid.MustParse("a4f9de1c-9c3b-4a6e-8d2f-0b1c2d3e4f50")
	got := ResponseURL("https://book.example.com", "accept", "RMM202609-0042", id)
	assert.True(t, strings.HasPrefix(got, "https://book.example.com/bookings/respond?"))
	assert.Contains(t, got, "action=accept")
	assert.Contains(t, got, "booking=RMM202609-0042")
	assert.Contains(t, got, "therapist="+id.String())
}
