package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rmmassage/dispatch/internal/http/handlers"
	httpmiddleware "github.com/rmmassage/dispatch/internal/http/middleware"
	"github.com/rmmassage/dispatch/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger             *logging.Logger
	Bookings           *handlers.BookingsHandler
	BookingResponse    *handlers.BookingResponseHandler
	SMSWebhook         *handlers.SMSWebhookHandler
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
}

// New creates a Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	if cfg.Bookings != nil {
		r.Post("/bookings", cfg.Bookings.Create)
		r.Get("/availability", cfg.Bookings.Availability)
	}
	if cfg.BookingResponse != nil {
		r.Get("/bookings/respond", cfg.BookingResponse.Respond)
	}
	if cfg.SMSWebhook != nil {
		// Rate limited: this endpoint is open to the internet and replies
		// with outbound SMS.
		r.With(httpmiddleware.RateLimit(5, 10)).Post("/webhooks/sms", cfg.SMSWebhook.Receive)
	}

	return r
}
