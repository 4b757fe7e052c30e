package main

import (
	"context"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/rmmassage/dispatch/internal/app/bootstrap"
	"github.com/rmmassage/dispatch/internal/booking"
	appconfig "github.com/rmmassage/dispatch/internal/config"
	"github.com/rmmassage/dispatch/internal/dispatch"
	"github.com/rmmassage/dispatch/internal/eligibility"
	"github.com/rmmassage/dispatch/internal/escalation"
	"github.com/rmmassage/dispatch/internal/observability/metrics"
	"github.com/rmmassage/dispatch/internal/therapist"
	"github.com/rmmassage/dispatch/pkg/logging"
)

// One-shot timeout sweep, intended for cron. Exits non-zero when the
// sweep itself fails; per-booking failures are logged and counted.
func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting timeout sweep", "env", cfg.Env)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := bootstrap.BuildDBPool(ctx, cfg)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	bookings := booking.NewStore(pool)
	therapists := therapist.NewStore(pool)
	filter := eligibility.NewFilter(therapists, bookings, cfg.Business, logger)

	emailSender := bootstrap.BuildEmailSender(ctx, cfg, logger)
	smsSender := bootstrap.BuildSMSSender(cfg, logger)
	dispatcher := dispatch.NewDispatcher(emailSender, smsSender, cfg.PublicBaseURL, logger)

	dispatchMetrics := metrics.NewDispatchMetrics(nil)
	sweeper := escalation.NewSweeper(bookings, filter, dispatcher, cfg.Business, dispatchMetrics, logger)

	res, err := sweeper.Sweep(ctx, time.Now())
	if err != nil {
		logger.Error("sweep failed", "error", err)
		os.Exit(1)
	}

	logger.Info("sweep finished",
		"first_examined", res.FirstExamined,
		"second_examined", res.SecondExamined,
		"reassigned", res.Reassigned,
		"declined", res.Declined,
		"failed", res.Failed,
	)
	if res.Failed > 0 {
		os.Exit(1)
	}
}
