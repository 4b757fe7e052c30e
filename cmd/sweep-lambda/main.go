package main

import (
	"context"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

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

// Scheduled-event entrypoint for the timeout sweep. EventBridge invokes
// this on a fixed cadence; each invocation runs exactly one sweep.
func main() {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	ctx := context.Background()
	pool, err := bootstrap.BuildDBPool(ctx, cfg)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		panic(err)
	}

	emailSender := bootstrap.BuildEmailSender(ctx, cfg, logger)
	smsSender := bootstrap.BuildSMSSender(cfg, logger)

	bookings := booking.NewStore(pool)
	therapists := therapist.NewStore(pool)
	filter := eligibility.NewFilter(therapists, bookings, cfg.Business, logger)
	dispatcher := dispatch.NewDispatcher(emailSender, smsSender, cfg.PublicBaseURL, logger)
	dispatchMetrics := metrics.NewDispatchMetrics(nil)
	sweeper := escalation.NewSweeper(bookings, filter, dispatcher, cfg.Business, dispatchMetrics, logger)

	lambda.Start(func(ctx context.Context, evt events.CloudWatchEvent) error {
		logger.Info("sweep triggered", "source", evt.Source, "time", evt.Time)

		res, err := sweeper.Sweep(ctx, time.Now())
		if err != nil {
			logger.Error("sweep failed", "error", err)
			return err
		}
		logger.Info("sweep finished",
			"first_examined", res.FirstExamined,
			"second_examined", res.SecondExamined,
			"reassigned", res.Reassigned,
			"declined", res.Declined,
			"failed", res.Failed,
		)
		return nil
	})
}
