package service

import (
	"context"

	"attesto/internal/events"
	dErrors "attesto/pkg/domain-errors"
	"attesto/pkg/requestcontext"
)

func (s *Service) logAudit(ctx context.Context, event string, attrs ...any) {
	if s.logger == nil {
		return
	}
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attrs = append(attrs, "request_id", requestID)
	}
	args := append(attrs, "event", event, "log_type", "audit")
	s.logger.InfoContext(ctx, event, args...)
}

// publish is fire-and-forget; a failing sink never fails the operation.
func (s *Service) publish(ctx context.Context, topic events.Topic, subject string, data map[string]string) {
	if err := s.events.Publish(ctx, events.New(ctx, topic, subject, data)); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "failed to publish event", "topic", string(topic), "error", err)
	}
}

// guard is deferred by every public entry point.
func (s *Service) guard(ctx context.Context, op string, errp *error) {
	r := recover()
	if r == nil {
		return
	}
	if s.logger != nil {
		s.logger.ErrorContext(ctx, "panic in credential operation", "operation", op, "panic", r)
	}
	*errp = dErrors.FromPanic(r)
}
