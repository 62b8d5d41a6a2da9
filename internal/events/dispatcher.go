package events

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/akash768145s/BlockCred-sub000/internal/domain"
)

const defaultBatchSize = 256

// Source is an ordered event log with change notification.
type Source interface {
	Changed() <-chan struct{}
	EventsSince(seq uint64, limit int) []domain.Event
}

// Sink consumes registry events in log order.
type Sink interface {
	Name() string
	Handle(ctx context.Context, ev domain.Event) error
}

// DeliveryObserver is told about every delivery attempt.
type DeliveryObserver interface {
	ObserveDelivery(sink string, event domain.EventName, err error)
}

// Dispatcher tails a Source and fans events out to sinks. A failing sink is
// logged and skipped; it does not hold back the others.
type Dispatcher struct {
	source   Source
	sinks    []Sink
	logger   *slog.Logger
	observer DeliveryObserver
	batch    int

	mu     sync.Mutex
	cursor uint64
}

// Option customises a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the dispatcher logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithObserver reports deliveries to observer.
func WithObserver(observer DeliveryObserver) Option {
	return func(d *Dispatcher) {
		d.observer = observer
	}
}

// WithStartSeq skips events up to and including seq.
func WithStartSeq(seq uint64) Option {
	return func(d *Dispatcher) {
		d.cursor = seq
	}
}

// NewDispatcher builds a Dispatcher delivering to sinks in order.
func NewDispatcher(source Source, sinks []Sink, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		source: source,
		sinks:  sinks,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		batch:  defaultBatchSize,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Cursor returns the sequence number of the last delivered event.
func (d *Dispatcher) Cursor() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cursor
}

// Run delivers events until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.Info("event dispatcher started", "sinks", len(d.sinks), "cursor", d.Cursor())
	for {
		// Take the notification channel before reading so a commit between
		// the read and the wait is not missed.
		changed := d.source.Changed()
		n := d.Drain(ctx)
		if n == d.batch {
			continue
		}
		select {
		case <-ctx.Done():
			d.logger.Info("event dispatcher stopped", "cursor", d.Cursor())
			return ctx.Err()
		case <-changed:
		}
	}
}

// Drain delivers one batch of pending events and returns how many were read.
func (d *Dispatcher) Drain(ctx context.Context) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	events := d.source.EventsSince(d.cursor, d.batch)
	for _, ev := range events {
		for _, sink := range d.sinks {
			err := sink.Handle(ctx, ev)
			if err != nil {
				d.logger.Warn("event delivery failed",
					"sink", sink.Name(),
					"event", ev.Name,
					"seq", ev.Seq,
					"error", err,
				)
			}
			if d.observer != nil {
				d.observer.ObserveDelivery(sink.Name(), ev.Name, err)
			}
		}
		d.cursor = ev.Seq
	}
	return len(events)
}
