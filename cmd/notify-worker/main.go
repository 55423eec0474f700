package main

import (
	"context"
	"os"
	"time"

	"finledger/internal/amqp"
	"finledger/internal/cache"
	"finledger/internal/cli"
	"finledger/internal/log"
	"finledger/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger("info")
	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.SetupLogger(cfg.LogLevel)

	logger.Info("Starting notify-worker", "backend", cfg.DataBackend, "queue", cfg.AMQPQueue)

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required by notify-worker")
		os.Exit(1)
	}

	backend := cli.MustOpenStore(context.Background(), logger, cfg)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		_ = backend.Cleanup()
		os.Exit(1)
	}

	seen := cache.NewLRUCache[struct{}](cfg.DedupeCacheSize, cfg.DedupeTTL)
	caches := cache.NewManager(logger)
	caches.Register(seen)
	caches.StartCleanup(10 * time.Minute)

	ctx, done := cli.GracefulShutdown(logger, cli.ShutdownTimeout, func() {
		caches.Stop()
		_ = amqpClient.Close()
		if err := backend.Cleanup(); err != nil {
			logger.Error("Failed to close data backend", log.FieldError, err)
		}
	})

	w := worker.NewNotificationWorker(backend.Store, seen, logger)
	go func() {
		if err := w.Run(ctx, amqpClient); err != nil {
			logger.Error("Message consumption failed", log.FieldError, err)
		}
	}()

	cli.WaitForShutdown(ctx, done)
}
