package events

import (
	"context"
	"log/slog"

	"attesto/pkg/platform/circuit"
)

// BreakerPublisher sends to a primary sink. Once the primary has failed
// enough times in a row, events are also handed to the fallback so they are
// not lost while the broker is down. The primary is still tried on every
// event so the circuit can close.
type BreakerPublisher struct {
	primary  Publisher
	fallback Publisher
	cb       *circuit.Breaker
	logger   *slog.Logger
}

func NewBreakerPublisher(primary, fallback Publisher, logger *slog.Logger, opts ...circuit.Option) *BreakerPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &BreakerPublisher{
		primary:  primary,
		fallback: fallback,
		cb:       circuit.New("event_publisher", opts...),
		logger:   logger,
	}
}

func (p *BreakerPublisher) Publish(ctx context.Context, event Event) error {
	err := p.primary.Publish(ctx, event)
	if err == nil {
		if _, change := p.cb.RecordSuccess(); change.Closed {
			p.logger.InfoContext(ctx, "circuit breaker closed", "circuit", p.cb.Name())
		}
		return nil
	}

	open, change := p.cb.RecordFailure()
	if change.Opened {
		p.logger.ErrorContext(ctx, "circuit breaker opened", "circuit", p.cb.Name(), "error", err)
	}
	if !open {
		return err
	}
	return p.fallback.Publish(ctx, event)
}

// IsOpen reports whether events are currently diverted to the fallback.
func (p *BreakerPublisher) IsOpen() bool {
	return p.cb.IsOpen()
}

// LogPublisher writes each event as a structured log line.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (l *LogPublisher) Publish(ctx context.Context, event Event) error {
	l.logger.WarnContext(ctx, "event not delivered to broker",
		"log_type", "event",
		"event_id", event.ID,
		"topic", string(event.Topic),
		"subject", event.Subject,
		"occurred_at", event.OccurredAt,
	)
	return nil
}
