package handlers

import (
	"context"
	"net/http"
	"net/url"

	"github.com/google/uuid"

	"github.com/rmmassage/dispatch/internal/messaging"
	"github.com/rmmassage/dispatch/internal/observability/metrics"
	"github.com/rmmassage/dispatch/internal/response"
	"github.com/rmmassage/dispatch/pkg/logging"
)

// ResponseApplier applies a therapist's accept/decline to a booking.
type ResponseApplier interface {
	Apply(ctx context.Context, code string, therapistID uuid.UUID, action string) (response.Outcome, error)
}

// BookingResponseHandler serves the accept/decline links therapists click
// from email. Outcomes redirect to the customer-facing status page rather
// than rendering anything here.
type BookingResponseHandler struct {
	processor     ResponseApplier
	statusPageURL string
	metrics       *metrics.DispatchMetrics
	logger        *logging.Logger
}

// NewBookingResponseHandler creates the email-link response handler.
func NewBookingResponseHandler(processor ResponseApplier, statusPageURL string, m *metrics.DispatchMetrics, logger *logging.Logger) *BookingResponseHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &BookingResponseHandler{
		processor:     processor,
		statusPageURL: statusPageURL,
		metrics:       m,
		logger:        logger,
	}
}

// Respond applies the therapist's response and redirects to the status page.
// GET /bookings/respond?action=&booking=&therapist=
func (h *BookingResponseHandler) Respond(w http.ResponseWriter, r *http.Request) {
	action := r.URL.Query().Get("action")
	code := r.URL.Query().Get("booking")
	therapistParam := r.URL.Query().Get("therapist")

	if action != messaging.ActionAccept && action != messaging.ActionDecline {
		jsonError(w, "action must be accept or decline", http.StatusBadRequest)
		return
	}
	if code == "" || therapistParam == "" {
		jsonError(w, "booking and therapist are required", http.StatusBadRequest)
		return
	}
	therapistID, err := uuid.Parse(therapistParam)
	if err != nil {
		jsonError(w, "therapist must be a valid id", http.StatusBadRequest)
		return
	}

	outcome, err := h.processor.Apply(r.Context(), code, therapistID, action)
	if err != nil {
		h.logger.Error("response link processing failed", "booking", code, "action", action, "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	h.metrics.ObserveResponse(action, "link", string(outcome))

	h.redirect(w, r, action, outcome)
}

func (h *BookingResponseHandler) redirect(w http.ResponseWriter, r *http.Request, action string, outcome response.Outcome) {
	status := "timeout"
	switch outcome {
	case response.OutcomeApplied:
		status = "success"
	case response.OutcomeAlreadyResolved:
		status = "already"
	case response.OutcomeNotFound:
		status = "timeout"
	}

	q := url.Values{}
	q.Set("status", status)
	q.Set("action", action)
	http.Redirect(w, r, h.statusPageURL+"?"+q.Encode(), http.StatusFound)
}
