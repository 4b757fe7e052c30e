package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/rmmassage/dispatch/internal/http/handlers"
	"github.com/rmmassage/dispatch/internal/response"
)

type fixedApplier struct{}

func (fixedApplier) Apply(_ context.Context, _ string, _ uuid.UUID, _ string) (response.Outcome, error) {
	return response.OutcomeApplied, nil
}

func TestHealthRoute(t *testing.T) {
	h := New(&Config{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}

func TestUnknownRoute(t *testing.T) {
	h := New(&Config{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRespondRouteWired(t *testing.T) {
	respond := handlers.NewBookingResponseHandler(fixedApplier{}, "https://example.com/status", nil, nil)
	h := New(&Config{BookingResponse: respond})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/bookings/respond?action=accept&booking=RMM202609-0001&therapist="+uuid.NewString(), nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Location"), "status=success")
}

func TestMetricsRouteWired(t *testing.T) {
	h := New(&Config{MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
