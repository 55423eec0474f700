package cli

import (
	"context"
	"time"

	"finledger/internal/amqp"
	"finledger/internal/cache"
	"finledger/internal/config"
	"finledger/internal/log"
	"finledger/internal/notify"
	"finledger/internal/ports"
	"finledger/internal/worker"
)

// EventSink is the running event pipeline of a binary.
type EventSink struct {
	*notify.Dispatcher
	closers []func()
}

// Close drains queued events, then releases the transport.
func (s *EventSink) Close() {
	s.Dispatcher.Close()
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// localPublisher logs each event and stores its notification directly,
// for deployments without a broker.
type localPublisher struct {
	log    notify.LogPublisher
	worker *worker.NotificationWorker
}

func (p localPublisher) PublishEvent(ctx context.Context, e notify.Event) error {
	_ = p.log.PublishEvent(ctx, e)
	return p.worker.HandleEvent(ctx, e)
}

// StartEventSink starts a dispatcher that publishes to AMQP when AMQP_URL is
// set. Without a broker, or when it cannot be reached at startup, events are
// logged and persisted as notifications in-process.
func StartEventSink(ctx context.Context, cfg *config.Config, store ports.NotificationStore, logger *log.Logger) *EventSink {
	sink := &EventSink{}

	var pub notify.Publisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, storing notifications in-process", log.FieldError, err)
		} else {
			pub = client
			sink.closers = append(sink.closers, func() { _ = client.Close() })
			logger.Info("AMQP publisher initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	} else {
		logger.Info("AMQP disabled, storing notifications in-process")
	}

	if pub == nil {
		seen := cache.NewLRUCache[struct{}](cfg.DedupeCacheSize, cfg.DedupeTTL)
		manager := cache.NewManager(logger)
		manager.Register(seen)
		manager.StartCleanup(time.Hour)
		sink.closers = append(sink.closers, manager.Stop)
		pub = localPublisher{
			log:    notify.LogPublisher{Logger: logger.WithComponent(log.ComponentDispatcher)},
			worker: worker.NewNotificationWorker(store, seen, logger),
		}
	}

	sink.Dispatcher = notify.NewDispatcher(pub, cfg.EventBufferSize, logger)
	sink.Dispatcher.Start(ctx)
	return sink
}
