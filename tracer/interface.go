package tracer

import (
	"context"
)

// Tracer creates spans and moves trace context in and out of message headers.
type Tracer interface {
	// StartSpan starts a child of the span in ctx (if any). Call End on the
	// returned span.
	StartSpan(ctx context.Context, name string) (context.Context, Span)

	// GetCarrier returns the W3C trace context of ctx as header key/values,
	// ready to be attached to a Kafka record.
	GetCarrier(ctx context.Context) map[string]string

	// SetCarrierOnContext is the inverse of GetCarrier.
	SetCarrierOnContext(ctx context.Context, carrier map[string]string) context.Context
}

// Span is a single traced operation.
type Span interface {
	End()

	// SetAttributes attaches key/values. string, int, int64, float64 and bool
	// keep their type; anything else is formatted with fmt.Sprint.
	SetAttributes(attrs map[string]interface{})

	// RecordError records err and marks the span as failed.
	RecordError(err error)
}
