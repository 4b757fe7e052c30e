package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rmmassage/dispatch/internal/api/router"
	"github.com/rmmassage/dispatch/internal/app/bootstrap"
	"github.com/rmmassage/dispatch/internal/booking"
	appconfig "github.com/rmmassage/dispatch/internal/config"
	"github.com/rmmassage/dispatch/internal/dispatch"
	"github.com/rmmassage/dispatch/internal/eligibility"
	"github.com/rmmassage/dispatch/internal/http/handlers"
	"github.com/rmmassage/dispatch/internal/observability/metrics"
	"github.com/rmmassage/dispatch/internal/response"
	"github.com/rmmassage/dispatch/internal/therapist"
	"github.com/rmmassage/dispatch/pkg/logging"
)

func main() {
	// Local development convenience; production uses real env vars.
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting dispatch API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	pool, err := bootstrap.BuildDBPool(ctx, cfg)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	bookings := booking.NewStore(pool)
	therapists := therapist.NewStore(pool)
	codes := booking.NewCodeAllocator(redisClient, pool, logger)
	filter := eligibility.NewFilter(therapists, bookings, cfg.Business, logger)

	emailSender := bootstrap.BuildEmailSender(ctx, cfg, logger)
	smsSender := bootstrap.BuildSMSSender(cfg, logger)
	dispatcher := dispatch.NewDispatcher(emailSender, smsSender, cfg.PublicBaseURL, logger)

	processor := response.NewProcessor(bookings, therapists, dispatcher, logger)
	dispatchMetrics := metrics.NewDispatchMetrics(nil)

	bookingsHandler := handlers.NewBookingsHandler(bookings, therapists, filter, codes, dispatcher, cfg.Business, dispatchMetrics, logger)
	responseHandler := handlers.NewBookingResponseHandler(processor, cfg.StatusPageURL, dispatchMetrics, logger)
	smsWebhook := handlers.NewSMSWebhookHandler(processor, therapists, cfg.TwilioAuthToken, cfg.SMSWebhookURL, dispatchMetrics, logger)

	r := router.New(&router.Config{
		Logger:          logger,
		Bookings:        bookingsHandler,
		BookingResponse: responseHandler,
		SMSWebhook:      smsWebhook,
		MetricsHandler:  promhttp.Handler(),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
