package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimitRejectsBeyondBurst(t *testing.T) {
	h := RateLimit(0.0001, 2)(okHandler())

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/webhooks/sms", nil)
		req.RemoteAddr = "203.0.113.9:1234"
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/webhooks/sms", nil)
	req.RemoteAddr = "203.0.113.9:1234"
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// A different IP has its own bucket.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest("POST", "/webhooks/sms", nil)
	req.RemoteAddr = "203.0.113.10:1234"
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORSAllowlist(t *testing.T) {
	h := CORS([]string{"https://remedialmobilemassage.com.au"})(okHandler())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/availability", nil)
	req.Header.Set("Origin", "https://remedialmobilemassage.com.au")
	h.ServeHTTP(rec, req)
	assert.Equal(t, "https://remedialmobilemassage.com.au", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/availability", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSPreflight(t *testing.T) {
	h := CORS([]string{"*"})(okHandler())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/bookings", nil)
	req.Header.Set("Origin", "https://anything.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRequestLoggerPassesThrough(t *testing.T) {
	h := RequestLogger(nil)(okHandler())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
