package dispatch

import (
	"bytes"
	"fmt"
	"net/url"
	"text/template"
	"time"

	"github.com/google/uuid"

	"github.com/rmmassage/dispatch/internal/booking"
	"github.com/rmmassage/dispatch/internal/therapist"
)

// CustomerKind selects the customer-facing notification template.
type CustomerKind string

const (
	KindRequestReceived  CustomerKind = "request-received"
	KindBookingConfirmed CustomerKind = "booking-confirmed"
	KindSeekingAlternate CustomerKind = "seeking-alternate"
	KindFinalDeclined    CustomerKind = "final-declined"
)

const whenLayout = "Mon 2 Jan 2006 at 3:04 PM"

const therapistRequestEmailTmpl = `Hi {{.TherapistName}},

A new booking request is waiting for you.

Booking:  {{.Code}}
When:     {{.When}}
Duration: {{.Duration}} minutes
Where:    {{.Address}}{{if .RoomNumber}}
Room:     {{.RoomNumber}}{{end}}{{if .Parking}}
Parking:  {{.Parking}}{{end}}
Your fee: ${{.Fee}}{{if .Notes}}

Notes from the customer:
{{.Notes}}{{end}}

Accept:  {{.AcceptURL}}
Decline: {{.DeclineURL}}

Or reply by SMS with ACCEPT {{.Code}} or DECLINE {{.Code}} (A or D also works).

Please respond within {{.TimeoutMinutes}} minutes or the request will be offered to another therapist.

Remedial Mobile Massage`

const therapistRequestSMSTmpl = `New booking {{.Code}}: {{.When}}, {{.Duration}} min, {{.Address}}. Fee ${{.Fee}}. Reply ACCEPT {{.Code}} or DECLINE {{.Code}} (A/D works) within {{.TimeoutMinutes}} min.`

const therapistConfirmedEmailTmpl = `Hi {{.TherapistName}},

You're confirmed for booking {{.Code}}.

When:     {{.When}}
Duration: {{.Duration}} minutes
Where:    {{.Address}}{{if .RoomNumber}}
Room:     {{.RoomNumber}}{{end}}{{if .Parking}}
Parking:  {{.Parking}}{{end}}
Customer: {{.CustomerName}}{{if .CustomerPhone}} ({{.CustomerPhone}}){{end}}
Your fee: ${{.Fee}}{{if .Notes}}

Notes from the customer:
{{.Notes}}{{end}}

Remedial Mobile Massage`

const therapistConfirmedSMSTmpl = `Confirmed: booking {{.Code}} on {{.When}}, {{.Duration}} min, {{.Address}}. Fee ${{.Fee}}.`

const customerReceivedEmailTmpl = `Hi {{.CustomerName}},

Thanks for your booking request with Remedial Mobile Massage.

Booking:  {{.Code}}
When:     {{.When}}
Duration: {{.Duration}} minutes
Where:    {{.Address}}
Total:    ${{.Price}}

We're contacting a therapist now and will confirm shortly.

Remedial Mobile Massage`

const customerReceivedSMSTmpl = `Remedial Mobile Massage: we've received your booking {{.Code}} for {{.When}}. We'll confirm your therapist shortly.`

const customerConfirmedEmailTmpl = `Hi {{.CustomerName}},

Great news — your booking is confirmed.

Booking:   {{.Code}}
When:      {{.When}}
Duration:  {{.Duration}} minutes
Where:     {{.Address}}{{if .TherapistName}}
Therapist: {{.TherapistName}}{{end}}
Total:     ${{.Price}}

See you then!

Remedial Mobile Massage`

const customerConfirmedSMSTmpl = `Remedial Mobile Massage: your booking {{.Code}} on {{.When}} is confirmed{{if .TherapistName}} with {{.TherapistName}}{{end}}.`

const customerSeekingAlternateEmailTmpl = `Hi {{.CustomerName}},

Your original therapist wasn't able to take booking {{.Code}}, so we're reaching out to other available therapists for you now.

When:  {{.When}}
Where: {{.Address}}

We'll let you know as soon as someone confirms. No action is needed from you.

Remedial Mobile Massage`

const customerSeekingAlternateSMSTmpl = `Remedial Mobile Massage: we're finding another therapist for your booking {{.Code}} on {{.When}}. We'll confirm as soon as possible.`

const customerDeclinedEmailTmpl = `Hi {{.CustomerName}},

Unfortunately we couldn't find an available therapist for your booking {{.Code}} on {{.When}}.

No payment has been taken. Please try a different time, or contact us and we'll do our best to help.

We're sorry we couldn't help this time.

Remedial Mobile Massage`

const customerDeclinedSMSTmpl = `Remedial Mobile Massage: sorry, no therapist was available for booking {{.Code}} on {{.When}}. No payment taken. Please try another time.`

type therapistMessageData struct {
	TherapistName  string
	Code           string
	When           string
	Duration       int
	Address        string
	RoomNumber     string
	Parking        string
	Notes          string
	Fee            string
	CustomerName   string
	CustomerPhone  string
	AcceptURL      string
	DeclineURL     string
	TimeoutMinutes int
}

type customerMessageData struct {
	CustomerName  string
	Code          string
	When          string
	Duration      int
	Address       string
	Price         string
	TherapistName string
}

// ResponseURL builds the signed-link style accept/decline URL a therapist
// clicks from email.
func ResponseURL(baseURL, action, code string, therapistID uuid.UUID) string {
	q := url.Values{}
	q.Set("action", action)
	q.Set("booking", code)
	q.Set("therapist", therapistID.String())
	return fmt.Sprintf("%s/bookings/respond?%s", baseURL, q.Encode())
}

func formatWhen(t time.Time) string {
	return t.Format(whenLayout)
}

func formatMoney(amount float64) string {
	return fmt.Sprintf("%.2f", amount)
}

func newTherapistData(b *booking.Booking, th *therapist.Therapist) therapistMessageData {
	return therapistMessageData{
		TherapistName: th.Name,
		Code:          b.Code,
		When:          formatWhen(b.ScheduledAt),
		Duration:      b.DurationMinutes,
		Address:       b.Address,
		RoomNumber:    b.RoomNumber,
		Parking:       b.Parking,
		Notes:         b.Notes,
		Fee:           formatMoney(b.TherapistFee),
		CustomerName:  b.CustomerName,
		CustomerPhone: b.CustomerPhone,
	}
}

func newCustomerData(b *booking.Booking, therapistName string) customerMessageData {
	return customerMessageData{
		CustomerName:  b.CustomerName,
		Code:          b.Code,
		When:          formatWhen(b.ScheduledAt),
		Duration:      b.DurationMinutes,
		Address:       b.Address,
		Price:         formatMoney(b.Price),
		TherapistName: therapistName,
	}
}

// render compiles template text with strict missing-key semantics.
func render(name, tmpl string, data any) (string, error) {
	t, err := template.New(name).Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("dispatch: parse %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("dispatch: execute %s: %w", name, err)
	}
	return buf.String(), nil
}

func customerTemplates(kind CustomerKind) (subject, emailTmpl, smsTmpl string, err error) {
	switch kind {
	case KindRequestReceived:
		return "We've received your booking request", customerReceivedEmailTmpl, customerReceivedSMSTmpl, nil
	case KindBookingConfirmed:
		return "Your booking is confirmed", customerConfirmedEmailTmpl, customerConfirmedSMSTmpl, nil
	case KindSeekingAlternate:
		return "We're finding another therapist for you", customerSeekingAlternateEmailTmpl, customerSeekingAlternateSMSTmpl, nil
	case KindFinalDeclined:
		return "Your booking could not be confirmed", customerDeclinedEmailTmpl, customerDeclinedSMSTmpl, nil
	default:
		return "", "", "", fmt.Errorf("dispatch: unknown customer template kind %q", kind)
	}
}
