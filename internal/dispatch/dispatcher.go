package dispatch

import (
	"context"
	"sync"

	"github.com/rmmassage/dispatch/internal/booking"
	"github.com/rmmassage/dispatch/internal/messaging"
	"github.com/rmmassage/dispatch/internal/notify"
	"github.com/rmmassage/dispatch/internal/therapist"
	"github.com/rmmassage/dispatch/pkg/logging"
)

// Result reports per-channel delivery for one notification. Channels are
// independent best-effort sends; a false flag means that channel failed
// or was not configured, never that the whole dispatch failed.
type Result struct {
	EmailSent bool
	SMSSent   bool
}

// Dispatcher sends templated booking notifications to therapists and
// customers over email and SMS.
type Dispatcher struct {
	email   notify.EmailSender
	sms     messaging.SMSSender
	baseURL string
	logger  *logging.Logger
}

// NewDispatcher builds a dispatcher. Either sender may be nil; the
// corresponding channel is then skipped.
func NewDispatcher(email notify.EmailSender, sms messaging.SMSSender, baseURL string, logger *logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.Default()
	}
	return &Dispatcher{
		email:   email,
		sms:     sms,
		baseURL: baseURL,
		logger:  logger,
	}
}

// NotifyTherapist sends the booking request to a therapist with accept and
// decline links and the SMS reply instructions.
func (d *Dispatcher) NotifyTherapist(ctx context.Context, b *booking.Booking, th *therapist.Therapist, timeoutMinutes int) Result {
	data := newTherapistData(b, th)
	data.AcceptURL = ResponseURL(d.baseURL, messaging.ActionAccept, b.Code, th.ID)
	data.DeclineURL = ResponseURL(d.baseURL, messaging.ActionDecline, b.Code, th.ID)
	data.TimeoutMinutes = timeoutMinutes
	// The confirmation template discloses customer contact details; the
	// request template must not.
	data.CustomerName = ""
	data.CustomerPhone = ""

	return d.send(ctx, "therapist_request",
		message{to: th.Email, toName: th.Name, subject: "New booking request " + b.Code, tmpl: therapistRequestEmailTmpl},
		message{to: th.Phone, tmpl: therapistRequestSMSTmpl},
		data,
	)
}

// NotifyTherapistConfirmed tells the accepting therapist the booking is theirs.
func (d *Dispatcher) NotifyTherapistConfirmed(ctx context.Context, b *booking.Booking, th *therapist.Therapist) Result {
	data := newTherapistData(b, th)
	return d.send(ctx, "therapist_confirmed",
		message{to: th.Email, toName: th.Name, subject: "Booking confirmed " + b.Code, tmpl: therapistConfirmedEmailTmpl},
		message{to: th.Phone, tmpl: therapistConfirmedSMSTmpl},
		data,
	)
}

// NotifyCustomer sends one of the customer template kinds. The customer
// message never includes the therapist fee.
func (d *Dispatcher) NotifyCustomer(ctx context.Context, b *booking.Booking, kind CustomerKind) Result {
	return d.notifyCustomer(ctx, b, kind, "")
}

// NotifyCustomerConfirmed is the booking-confirmed kind with the accepting
// therapist's name included.
func (d *Dispatcher) NotifyCustomerConfirmed(ctx context.Context, b *booking.Booking, th *therapist.Therapist) Result {
	return d.notifyCustomer(ctx, b, KindBookingConfirmed, th.Name)
}

func (d *Dispatcher) notifyCustomer(ctx context.Context, b *booking.Booking, kind CustomerKind, therapistName string) Result {
	subject, emailTmpl, smsTmpl, err := customerTemplates(kind)
	if err != nil {
		d.logger.Error("customer notification skipped", "error", err, "booking", b.Code)
		return Result{}
	}
	data := newCustomerData(b, therapistName)
	return d.send(ctx, "customer_"+string(kind),
		message{to: b.CustomerEmail, toName: b.CustomerName, subject: subject, tmpl: emailTmpl},
		message{to: b.CustomerPhone, tmpl: smsTmpl},
		data,
	)
}

type message struct {
	to      string
	toName  string
	subject string
	tmpl    string
}

// send renders and dispatches the email and SMS variants concurrently.
// Provider failures are logged and reported as flags.
func (d *Dispatcher) send(ctx context.Context, name string, email, sms message, data any) Result {
	var res Result
	var wg sync.WaitGroup

	if d.email != nil && email.to != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			body, err := render(name+"_email", email.tmpl, data)
			if err != nil {
				d.logger.Error("email render failed", "template", name, "error", err)
				return
			}
			err = d.email.Send(ctx, notify.EmailMessage{
				To:      email.to,
				ToName:  email.toName,
				Subject: email.subject,
				Body:    body,
			})
			if err != nil {
				d.logger.Error("email send failed", "template", name, "to", email.to, "error", err)
				return
			}
			res.EmailSent = true
		}()
	}

	if d.sms != nil && sms.to != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			body, err := render(name+"_sms", sms.tmpl, data)
			if err != nil {
				d.logger.Error("sms render failed", "template", name, "error", err)
				return
			}
			err = d.sms.SendSMS(ctx, messaging.NormalizeAU(sms.to), body)
			if err != nil {
				d.logger.Error("sms send failed", "template", name, "to", sms.to, "error", err)
				return
			}
			res.SMSSent = true
		}()
	}

	wg.Wait()
	return res
}
