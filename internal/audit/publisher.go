package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"landledger/pkg/requestcontext"
)

// Publisher captures structured audit events. It is append-only and writes to
// a primary store plus any number of extra sinks (e.g. kafka), so tests can
// swap sinks easily. With an async buffer, Emit never blocks domain logic on
// sink latency; Close drains the buffer.
type Publisher struct {
	store  Store
	sinks  []Sink
	logger *slog.Logger

	inbox chan Event
	wg    sync.WaitGroup
	once  sync.Once
}

type Option func(*Publisher)

// WithAsyncBuffer switches the publisher to asynchronous delivery with the
// given buffer size.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		p.inbox = make(chan Event, size)
	}
}

// WithSink adds a secondary sink, e.g. the kafka producer.
func WithSink(sink Sink) Option {
	return func(p *Publisher) {
		p.sinks = append(p.sinks, sink)
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func NewPublisher(store Store, opts ...Option) *Publisher {
	p := &Publisher{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	if p.inbox != nil {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

// Emit records one transition. The timestamp defaults to the request time so
// the trail matches the instant the engine evaluated its preconditions.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if device, ok := requestcontext.DeviceInfo(ctx); ok && event.Device == "" {
		event.Device = device.Name + "/" + device.OS
	}

	if p.inbox != nil {
		p.inbox <- event
		return nil
	}
	return p.deliver(context.WithoutCancel(ctx), event)
}

// List returns the trail for one record.
func (p *Publisher) List(ctx context.Context, recordKind, recordID string) ([]Event, error) {
	return p.store.ListByRecord(ctx, recordKind, recordID)
}

// Close drains the async buffer. Safe to call on a synchronous publisher.
func (p *Publisher) Close() {
	p.once.Do(func() {
		if p.inbox != nil {
			close(p.inbox)
			p.wg.Wait()
		}
	})
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	for event := range p.inbox {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := p.deliver(ctx, event); err != nil {
			p.logger.Error("audit delivery failed", "action", event.Action, "error", err)
		}
		cancel()
	}
}

func (p *Publisher) deliver(ctx context.Context, event Event) error {
	if err := p.store.Append(ctx, event); err != nil {
		return err
	}
	for _, sink := range p.sinks {
		if err := sink.Append(ctx, event); err != nil {
			// Secondary sinks are best-effort; the store is the record.
			p.logger.Warn("audit sink append failed", "action", event.Action, "error", err)
		}
	}
	return nil
}
