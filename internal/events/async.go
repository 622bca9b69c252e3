package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrBufferFull is returned when the async buffer cannot accept an event.
var ErrBufferFull = errors.New("event buffer full")

// AsyncPublisher queues events and forwards them to the next publisher from
// a background goroutine.
type AsyncPublisher struct {
	next   Publisher
	events chan Event
	wg     sync.WaitGroup
	logger *slog.Logger
}

type AsyncOption func(*AsyncPublisher)

func WithAsyncLogger(logger *slog.Logger) AsyncOption {
	return func(p *AsyncPublisher) {
		p.logger = logger
	}
}

// NewAsync starts the forwarding goroutine. Close drains the buffer.
func NewAsync(next Publisher, bufferSize int, opts ...AsyncOption) *AsyncPublisher {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	p := &AsyncPublisher{next: next, events: make(chan Event, bufferSize)}
	for _, opt := range opts {
		opt(p)
	}
	p.wg.Add(1)
	go p.forward()
	return p
}

func (p *AsyncPublisher) forward() {
	defer p.wg.Done()
	for event := range p.events {
		if err := p.next.Publish(context.Background(), event); err != nil && p.logger != nil {
			p.logger.Error("failed to publish event",
				"error", err,
				"topic", string(event.Topic),
				"event_id", event.ID,
			)
		}
	}
}

// Publish enqueues without blocking.
func (p *AsyncPublisher) Publish(ctx context.Context, event Event) error {
	select {
	case p.events <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		if p.logger != nil {
			p.logger.Warn("event buffer full, event dropped",
				"topic", string(event.Topic),
				"event_id", event.ID,
			)
		}
		return ErrBufferFull
	}
}

// Close stops accepting events and waits for queued ones to be forwarded.
func (p *AsyncPublisher) Close() {
	close(p.events)
	p.wg.Wait()
}
