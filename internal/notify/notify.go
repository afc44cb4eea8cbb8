// Package notify delivers grid lifecycle events to downstream consumers.
// Delivery is best effort: failures are logged, never returned to the caller
// that triggered the event.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/me/timetable/pkg/model"
)

// Notifier sends one event to one destination.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, ev model.Event) error
}

// Config holds dispatcher configuration.
type Config struct {
	QueueSize   int
	SendTimeout time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{QueueSize: 256, SendTimeout: 5 * time.Second}
}

// Dispatcher queues events and fans them out to notifiers on its own goroutine.
type Dispatcher struct {
	notifiers []Notifier
	config    Config
	queue     chan model.Event
	logger    *slog.Logger
	stopCh    chan struct{}
	doneCh    chan struct{}
	stopOnce  sync.Once
	started   atomic.Bool
	now       func() time.Time
}

// NewDispatcher creates a dispatcher. Call Start to begin delivery.
func NewDispatcher(cfg Config, logger *slog.Logger, notifiers ...Notifier) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConfig().QueueSize
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = DefaultConfig().SendTimeout
	}
	return &Dispatcher{
		notifiers: notifiers,
		config:    cfg,
		queue:     make(chan model.Event, cfg.QueueSize),
		logger:    logger.With("component", "notify"),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
		now:       time.Now,
	}
}

// Dispatch enqueues ev without blocking. ID and OccurredAt are filled in when
// empty. A full queue drops the event.
func (d *Dispatcher) Dispatch(ev model.Event) {
	if ev.ID == "" {
		ev.ID = "evt_" + uuid.New().String()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = d.now().UTC()
	}
	select {
	case d.queue <- ev:
	default:
		d.logger.Warn("event dropped, queue full", "kind", ev.Kind, "class_group", ev.ClassGroup)
	}
}

// Start delivers queued events. Blocks until ctx is cancelled or Stop is called.
// Events still queued at Stop are delivered first.
func (d *Dispatcher) Start(ctx context.Context) error {
	if !d.started.CompareAndSwap(false, true) {
		return fmt.Errorf("dispatcher already started")
	}
	d.logger.Info("dispatcher started", "notifiers", len(d.notifiers))
	defer close(d.doneCh)
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("dispatcher stopping (context cancelled)")
			return ctx.Err()
		case <-d.stopCh:
			d.drain(ctx)
			d.logger.Info("dispatcher stopping (stop called)")
			return nil
		case ev := <-d.queue:
			d.deliver(ctx, ev)
		}
	}
}

// Stop shuts the dispatcher down and waits for queued events. It returns at
// once when Start was never called, and is safe to call more than once.
func (d *Dispatcher) Stop() error {
	d.stopOnce.Do(func() { close(d.stopCh) })
	if !d.started.Load() {
		return nil
	}
	<-d.doneCh
	return nil
}

func (d *Dispatcher) drain(ctx context.Context) {
	for {
		select {
		case ev := <-d.queue:
			d.deliver(ctx, ev)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, ev model.Event) {
	for _, n := range d.notifiers {
		sendCtx, cancel := context.WithTimeout(ctx, d.config.SendTimeout)
		err := n.Notify(sendCtx, ev)
		cancel()
		if err != nil {
			d.logger.Error("notify failed", "notifier", n.Name(), "event_id", ev.ID, "kind", ev.Kind, "error", err)
			continue
		}
		d.logger.Debug("notified", "notifier", n.Name(), "event_id", ev.ID, "kind", ev.Kind)
	}
}
