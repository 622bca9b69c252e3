// Package tracer is a small span API over OpenTelemetry. Services depend on
// the Tracer interface; tests use the noop implementation.
package tracer

import (
	"context"
	"time"
)

// Span is an active trace span. End must be called exactly once.
type Span interface {
	// End completes the span and marks it failed when err is non-nil.
	End(err error)
	SetAttributes(attrs ...Attribute)
	AddEvent(name string, attrs ...Attribute)
}

// Tracer starts spans. Implementations are safe for concurrent use.
type Tracer interface {
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

// Attribute is a key/value pair attached to a span.
type Attribute struct {
	Key   string
	Value any
}

func String(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

func Bool(key string, value bool) Attribute {
	return Attribute{Key: key, Value: value}
}

func Int(key string, value int) Attribute {
	return Attribute{Key: key, Value: value}
}

// Duration records the value in milliseconds.
func Duration(key string, value time.Duration) Attribute {
	return Attribute{Key: key, Value: value.Milliseconds()}
}

const (
	SpanCredentialIssue        = "credential.issue"
	SpanCredentialVerify       = "credential.verify"
	SpanPresentationVerify     = "presentation.verify"
	SpanPresentationVerifyItem = "presentation.verify.credential"
)

const (
	AttrCredentialID = "credential.id"
	AttrIssuer       = "credential.issuer"
	AttrHolder       = "presentation.holder"
	AttrValid        = "verification.valid"
	AttrErrorCount   = "verification.errors"
	AttrWarningCount = "verification.warnings"
	AttrCredentials  = "presentation.credentials"
)
