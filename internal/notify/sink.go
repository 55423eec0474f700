package notify

import (
	"context"
	"sync"
	"time"

	"finledger/internal/core"
	"finledger/internal/log"
)

// Sink accepts events without blocking the caller.
type Sink interface {
	Emit(ctx context.Context, e Event)
}

// Publisher delivers one event to a transport.
type Publisher interface {
	PublishEvent(ctx context.Context, e Event) error
}

// Discard drops every event.
type Discard struct{}

func (Discard) Emit(context.Context, Event) {}

// Dispatcher buffers events and publishes them from a single goroutine.
// When the buffer is full the event is dropped with a warning rather than
// stalling the ledger.
type Dispatcher struct {
	pub     Publisher
	logger  *log.Logger
	timeout time.Duration

	mu     sync.RWMutex
	ch     chan Event
	closed bool
	wg     sync.WaitGroup
}

func NewDispatcher(pub Publisher, buffer int, logger *log.Logger) *Dispatcher {
	if buffer < 1 {
		buffer = 1
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Dispatcher{
		pub:     pub,
		logger:  logger.WithComponent(log.ComponentDispatcher),
		timeout: 5 * time.Second,
		ch:      make(chan Event, buffer),
	}
}

func (d *Dispatcher) Emit(ctx context.Context, e Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.logger.WarnContext(ctx, "Dispatcher closed, dropping event", log.FieldEventID, e.ID, log.FieldEventKind, e.Kind)
		return
	}
	select {
	case d.ch <- e:
	default:
		d.logger.WarnContext(ctx, "Event buffer full, dropping event", log.FieldEventID, e.ID, log.FieldEventKind, e.Kind)
	}
}

// Start publishes buffered events until Close. Events still queued when ctx
// is cancelled are drained with a detached context.
func (d *Dispatcher) Start(ctx context.Context) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		base := context.WithoutCancel(ctx)
		for e := range d.ch {
			pctx, cancel := context.WithTimeout(base, d.timeout)
			if err := d.pub.PublishEvent(pctx, e); err != nil {
				d.logger.Error("Failed to publish event",
					log.FieldEventID, e.ID,
					log.FieldEventKind, e.Kind,
					log.FieldError, err)
			}
			cancel()
		}
	}()
}

// Close stops accepting events and waits for the queue to drain.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.ch)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

// LogPublisher writes events to the log. Used when no broker is configured.
type LogPublisher struct {
	Logger *log.Logger
}

func (p LogPublisher) PublishEvent(ctx context.Context, e Event) error {
	p.Logger.InfoContext(ctx, "Ledger event",
		log.FieldEventID, e.ID,
		log.FieldEventKind, e.Kind,
		log.FieldUserID, e.UserID,
		"source", e.Source.String(),
		"title", e.Title)
	return nil
}

// Recorder keeps emitted events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Emit(_ context.Context, e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *Recorder) PublishEvent(ctx context.Context, e Event) error {
	r.Emit(ctx, e)
	return nil
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// OfKind filters recorded events by kind.
func (r *Recorder) OfKind(kind core.NotificationKind) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}
