package main

import (
	"context"
	"os"

	"github.com/robfig/cron/v3"

	"finledger/internal/calendar"
	"finledger/internal/cli"
	"finledger/internal/log"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger("info")
	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.SetupLogger(cfg.LogLevel)

	logger.Info("Starting finledger-worker",
		"backend", cfg.DataBackend,
		"catchup_schedule", cfg.CatchUpSchedule,
		"reminder_schedule", cfg.ReminderSchedule)

	backend := cli.MustOpenStore(context.Background(), logger, cfg)

	// Events outlive the signal context so the dispatcher can drain on shutdown.
	events := cli.StartEventSink(context.Background(), cfg, backend.Store, logger)
	svc := cli.NewServices(backend.Store, cfg, calendar.SystemClock{}, events, logger)

	scheduler := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	release := func() {
		events.Close()
		if err := backend.Cleanup(); err != nil {
			logger.Error("Failed to close data backend", log.FieldError, err)
		}
	}
	ctx, done := cli.GracefulShutdown(logger, cli.ShutdownTimeout, func() {
		<-scheduler.Stop().Done()
		release()
	})

	schedLogger := logger.WithComponent(log.ComponentScheduler)
	catchUp := func() {
		report, err := svc.Recurring.RunCatchUp(ctx, svc.Today())
		if err != nil {
			schedLogger.Error("Catch-up finished with failures",
				"failed", report.Failed,
				log.FieldError, err)
		}
	}
	remind := func() {
		if _, err := svc.Recurring.UpcomingReminders(ctx, svc.Today(), cfg.ReminderDaysBefore); err != nil {
			schedLogger.Error("Reminder run failed", log.FieldError, err)
		}
	}

	err := cli.RegisterJobs(scheduler,
		cli.Job{Name: "catch-up", Spec: cfg.CatchUpSchedule, Run: catchUp},
		cli.Job{Name: "reminder", Spec: cfg.ReminderSchedule, Run: remind},
	)
	if err != nil {
		logger.Error("Invalid job schedule", log.FieldError, err)
		release()
		os.Exit(1)
	}

	// Recover anything missed while the worker was down.
	logger.Info("Running startup catch-up")
	catchUp()

	scheduler.Start()
	schedLogger.Info("Scheduler started", log.FieldOperation, log.OpStartup)

	cli.WaitForShutdown(ctx, done)
}
