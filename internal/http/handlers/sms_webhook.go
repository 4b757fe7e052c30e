package handlers

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rmmassage/dispatch/internal/messaging"
	"github.com/rmmassage/dispatch/internal/observability/metrics"
	"github.com/rmmassage/dispatch/internal/response"
	"github.com/rmmassage/dispatch/internal/therapist"
	"github.com/rmmassage/dispatch/pkg/logging"
)

// TherapistResolver resolves an inbound sender number to a therapist.
type TherapistResolver interface {
	FindByPhone(ctx context.Context, candidates []string) (*therapist.Therapist, error)
}

// SMSWebhookHandler processes inbound therapist SMS replies. Whatever
// happens internally the provider gets HTTP 200, so a bad command never
// turns into a provider retry storm.
type SMSWebhookHandler struct {
	processor   ResponseApplier
	therapists  TherapistResolver
	authToken   string
	webhookURL  string
	validateSig bool
	metrics     *metrics.DispatchMetrics
	logger      *logging.Logger
}

// NewSMSWebhookHandler creates the inbound SMS handler. Signature
// validation is enabled when both authToken and webhookURL are set.
func NewSMSWebhookHandler(processor ResponseApplier, therapists TherapistResolver, authToken, webhookURL string, m *metrics.DispatchMetrics, logger *logging.Logger) *SMSWebhookHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &SMSWebhookHandler{
		processor:   processor,
		therapists:  therapists,
		authToken:   authToken,
		webhookURL:  webhookURL,
		validateSig: authToken != "" && webhookURL != "",
		metrics:     m,
		logger:      logger,
	}
}

// Receive handles one inbound SMS.
// POST /webhooks/sms (form-encoded From/Body)
func (h *SMSWebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() {
		h.metrics.ObserveWebhookLatency("sms", time.Since(start).Seconds())
	}()

	if h.validateSig && !messaging.ValidateTwilioSignature(r, h.authToken, h.webhookURL) {
		h.logger.Warn("sms webhook signature rejected", "remote_ip", r.RemoteAddr)
		http.Error(w, "invalid signature", http.StatusForbidden)
		return
	}

	inbound, err := messaging.ParseInboundSMS(r)
	if err != nil {
		h.logger.Error("sms webhook parse failed", "error", err)
		h.reply(w, "")
		return
	}

	h.reply(w, h.process(r.Context(), inbound))
}

// process works out the reply text for one inbound message. An empty
// return means reply with nothing.
func (h *SMSWebhookHandler) process(ctx context.Context, inbound *messaging.InboundSMS) string {
	cmd, ok := messaging.ParseCommand(inbound.Body)
	if !ok {
		h.metrics.ObserveResponse("unknown", "sms", "malformed")
		return messaging.HelpText
	}

	th, err := h.therapists.FindByPhone(ctx, messaging.PhoneCandidates(inbound.From))
	if err != nil {
		if errors.Is(err, therapist.ErrTherapistNotFound) {
			h.logger.Warn("sms from unrecognized number", "from", inbound.From)
			h.metrics.ObserveResponse(cmd.Action, "sms", "unknown_sender")
			return "Sorry, we don't recognize this number. Please use the link in your booking email instead."
		}
		h.logger.Error("therapist phone lookup failed", "error", err)
		return "Sorry, something went wrong. Please try again shortly."
	}

	outcome, err := h.processor.Apply(ctx, cmd.Code, th.ID, cmd.Action)
	if err != nil {
		h.logger.Error("sms response processing failed", "booking", cmd.Code, "action", cmd.Action, "error", err)
		return "Sorry, something went wrong. Please try again shortly."
	}
	h.metrics.ObserveResponse(cmd.Action, "sms", string(outcome))

	switch outcome {
	case response.OutcomeNotFound:
		return fmt.Sprintf("We couldn't find booking %s. Please check the code and try again.", cmd.Code)
	case response.OutcomeAlreadyResolved:
		return fmt.Sprintf("Booking %s has already been taken or resolved, so your reply wasn't applied.", cmd.Code)
	}

	if cmd.Action == messaging.ActionAccept {
		return fmt.Sprintf("Thanks %s, you've accepted booking %s. The details are in your email.", th.Name, cmd.Code)
	}
	return fmt.Sprintf("Thanks %s, you've declined booking %s.", th.Name, cmd.Code)
}

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message,omitempty"`
}

// reply writes a TwiML response; the provider turns Message into an
// outbound SMS to the sender.
func (h *SMSWebhookHandler) reply(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	out, err := xml.Marshal(twimlResponse{Message: message})
	if err != nil {
		h.logger.Error("twiml marshal failed", "error", err)
		return
	}
	_, _ = w.Write([]byte(xml.Header))
	_, _ = w.Write(out)
}
