package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rmmassage/dispatch/internal/booking"
	"github.com/rmmassage/dispatch/internal/config"
	"github.com/rmmassage/dispatch/internal/dispatch"
	"github.com/rmmassage/dispatch/internal/eligibility"
	"github.com/rmmassage/dispatch/internal/observability/metrics"
	"github.com/rmmassage/dispatch/internal/therapist"
	"github.com/rmmassage/dispatch/pkg/logging"
)

// BookingsHandler owns the booking write path and the availability lookup
// the wizard frontend uses.
type BookingsHandler struct {
	bookings   *booking.Store
	therapists *therapist.Store
	filter     *eligibility.Filter
	codes      *booking.CodeAllocator
	dispatcher *dispatch.Dispatcher
	settings   config.Business
	metrics    *metrics.DispatchMetrics
	logger     *logging.Logger
}

// NewBookingsHandler wires the booking creation and availability handler.
func NewBookingsHandler(
	bookings *booking.Store,
	therapists *therapist.Store,
	filter *eligibility.Filter,
	codes *booking.CodeAllocator,
	dispatcher *dispatch.Dispatcher,
	settings config.Business,
	m *metrics.DispatchMetrics,
	logger *logging.Logger,
) *BookingsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &BookingsHandler{
		bookings:   bookings,
		therapists: therapists,
		filter:     filter,
		codes:      codes,
		dispatcher: dispatcher,
		settings:   settings,
		metrics:    m,
		logger:     logger,
	}
}

// CreateBookingRequest is the wizard's booking submission.
type CreateBookingRequest struct {
	ServiceID        string   `json:"service_id"`
	DurationMinutes  int      `json:"duration_minutes"`
	ScheduledAt      string   `json:"scheduled_at"` // RFC 3339
	Address          string   `json:"address"`
	Lat              *float64 `json:"lat,omitempty"`
	Lng              *float64 `json:"lng,omitempty"`
	GenderPreference string   `json:"gender_preference,omitempty"`
	FallbackOption   bool     `json:"fallback_option"`
	CustomerName     string   `json:"customer_name"`
	CustomerEmail    string   `json:"customer_email"`
	CustomerPhone    string   `json:"customer_phone"`
	Notes            string   `json:"notes,omitempty"`
	RoomNumber       string   `json:"room_number,omitempty"`
	Parking          string   `json:"parking,omitempty"`
	BusinessName     string   `json:"business_name,omitempty"`
}

// CreateBookingResponse is returned after a successful submission.
type CreateBookingResponse struct {
	ID        string  `json:"id"`
	Code      string  `json:"code"`
	Status    string  `json:"status"`
	Price     float64 `json:"price"`
	Contacted int     `json:"therapists_contacted"`
}

// Create validates and persists a new booking, then notifies the customer
// and the first eligible therapist.
// POST /bookings
func (h *BookingsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	b, errMsg := h.validate(&req)
	if errMsg != "" {
		jsonError(w, errMsg, http.StatusBadRequest)
		return
	}

	svc, err := h.bookings.GetService(r.Context(), b.ServiceID)
	if err != nil {
		if errors.Is(err, booking.ErrServiceNotFound) {
			jsonError(w, "unknown service", http.StatusBadRequest)
			return
		}
		h.logger.Error("service lookup failed", "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	if b.DurationMinutes < svc.MinDurationMinutes {
		jsonError(w, "duration below the service minimum", http.StatusBadRequest)
		return
	}

	// The wizard also checks this client-side; enforcing it here keeps a
	// crafted request from booking inside the advance window.
	if !eligibility.MeetsMinAdvance(b.ScheduledAt, time.Now(), h.settings.MinAdvanceHours) {
		jsonError(w, "booking is inside the minimum advance window", http.StatusUnprocessableEntity)
		return
	}

	b.Price, b.TherapistFee = booking.Quote(svc, h.settings, b.ScheduledAt, b.DurationMinutes)

	code, err := h.codes.Next(r.Context(), time.Now())
	if err != nil {
		h.logger.Error("code allocation failed", "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	b.Code = code

	if err := h.bookings.Create(r.Context(), b); err != nil {
		h.logger.Error("booking insert failed", "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	if err := h.bookings.AppendHistory(r.Context(), b.ID, booking.StatusRequested, nil, "booking created"); err != nil {
		h.logger.Error("history append failed", "booking", b.Code, "error", err)
	}

	res := h.dispatcher.NotifyCustomer(r.Context(), b, dispatch.KindRequestReceived)
	h.metrics.ObserveNotification("email", "customer", res.EmailSent)
	h.metrics.ObserveNotification("sms", "customer", res.SMSSent)

	contacted := h.assignFirstEligible(r, b)

	jsonResponse(w, http.StatusCreated, CreateBookingResponse{
		ID:        b.ID.String(),
		Code:      b.Code,
		Status:    string(b.Status),
		Price:     b.Price,
		Contacted: contacted,
	})
}

// assignFirstEligible picks the first matching therapist and sends them the
// request. A booking with no match stays requested; the timeout sweep
// finalizes it.
func (h *BookingsHandler) assignFirstEligible(r *http.Request, b *booking.Booking) int {
	candidates, err := h.filter.FindEligibleTherapists(r.Context(), b, nil)
	if err != nil {
		h.logger.Error("eligibility search failed", "booking", b.Code, "error", err)
		return 0
	}
	if len(candidates) == 0 {
		h.logger.Warn("no eligible therapists at creation", "booking", b.Code)
		return 0
	}

	th := candidates[0]
	if err := h.bookings.AssignTherapist(r.Context(), b.ID, th.ID, time.Now()); err != nil {
		h.logger.Error("therapist assignment failed", "booking", b.Code, "error", err)
		return 0
	}
	b.TherapistID = &th.ID
	b.ContactedTherapistIDs = append(b.ContactedTherapistIDs, th.ID)

	res := h.dispatcher.NotifyTherapist(r.Context(), b, &th, int(h.settings.ResponseTimeout.Minutes()))
	h.metrics.ObserveNotification("email", "therapist", res.EmailSent)
	h.metrics.ObserveNotification("sms", "therapist", res.SMSSent)
	return 1
}

func (h *BookingsHandler) validate(req *CreateBookingRequest) (*booking.Booking, string) {
	serviceID, err := uuid.Parse(strings.TrimSpace(req.ServiceID))
	if err != nil {
		return nil, "service_id must be a valid id"
	}
	scheduledAt, err := time.Parse(time.RFC3339, req.ScheduledAt)
	if err != nil {
		return nil, "scheduled_at must be RFC 3339"
	}
	if req.DurationMinutes <= 0 {
		return nil, "duration_minutes must be positive"
	}
	if strings.TrimSpace(req.Address) == "" {
		return nil, "address is required"
	}
	if strings.TrimSpace(req.CustomerName) == "" {
		return nil, "customer_name is required"
	}
	if strings.TrimSpace(req.CustomerEmail) == "" && strings.TrimSpace(req.CustomerPhone) == "" {
		return nil, "customer_email or customer_phone is required"
	}

	pref := strings.ToLower(strings.TrimSpace(req.GenderPreference))
	switch pref {
	case "":
		pref = booking.GenderPreferenceAny
	case booking.GenderPreferenceMale, booking.GenderPreferenceFemale, booking.GenderPreferenceAny:
	default:
		return nil, "gender_preference must be male, female or any"
	}

	return &booking.Booking{
		ID:               uuid.New(),
		ServiceID:        serviceID,
		DurationMinutes:  req.DurationMinutes,
		ScheduledAt:      scheduledAt,
		Address:          strings.TrimSpace(req.Address),
		Lat:              req.Lat,
		Lng:              req.Lng,
		GenderPreference: pref,
		FallbackOption:   req.FallbackOption,
		Status:           booking.StatusRequested,
		CustomerName:     strings.TrimSpace(req.CustomerName),
		CustomerEmail:    strings.TrimSpace(req.CustomerEmail),
		CustomerPhone:    strings.TrimSpace(req.CustomerPhone),
		Notes:            strings.TrimSpace(req.Notes),
		RoomNumber:       strings.TrimSpace(req.RoomNumber),
		Parking:          strings.TrimSpace(req.Parking),
		BusinessName:     strings.TrimSpace(req.BusinessName),
	}, ""
}

// AvailabilityResponse lists the bookable start times for one therapist
// and day.
type AvailabilityResponse struct {
	TherapistID string   `json:"therapist_id"`
	Date        string   `json:"date"`
	Slots       []string `json:"slots"`
}

// Availability returns the open hourly slots for a therapist on a date.
// GET /availability?therapist=&date=&duration=
func (h *BookingsHandler) Availability(w http.ResponseWriter, r *http.Request) {
	therapistID, err := uuid.Parse(r.URL.Query().Get("therapist"))
	if err != nil {
		jsonError(w, "therapist must be a valid id", http.StatusBadRequest)
		return
	}
	date, err := time.Parse("2006-01-02", r.URL.Query().Get("date"))
	if err != nil {
		jsonError(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	duration := 60
	if raw := r.URL.Query().Get("duration"); raw != "" {
		duration, err = strconv.Atoi(raw)
		if err != nil || duration <= 0 {
			jsonError(w, "duration must be a positive number of minutes", http.StatusBadRequest)
			return
		}
	}

	th, err := h.therapists.GetByID(r.Context(), therapistID)
	if err != nil {
		if errors.Is(err, therapist.ErrTherapistNotFound) {
			jsonError(w, "unknown therapist", http.StatusNotFound)
			return
		}
		h.logger.Error("therapist lookup failed", "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}

	slots, err := h.filter.AvailableSlots(r.Context(), th, date, duration)
	if err != nil {
		h.logger.Error("slot computation failed", "therapist_id", therapistID, "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	slots = eligibility.FilterMinAdvance(slots, date, time.Now(), h.settings.MinAdvanceHours)

	jsonResponse(w, http.StatusOK, AvailabilityResponse{
		TherapistID: therapistID.String(),
		Date:        date.Format("2006-01-02"),
		Slots:       slots,
	})
}
