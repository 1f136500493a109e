package publisher

import (
	"context"
	"time"

	"github.com/aalemi-dev/eventpipe/encoder"
	"github.com/aalemi-dev/eventpipe/kafka"
	"github.com/aalemi-dev/eventpipe/schema_registry"
)

// SchemaResolver maps a subject to its registered schema.
// *schema_registry.Cache implements it.
type SchemaResolver interface {
	Resolve(ctx context.Context, subject string) (schema_registry.Descriptor, error)
}

// MessageEncoder turns events into wire records. *encoder.Encoder implements it.
type MessageEncoder interface {
	Codec() encoder.Codec
	Encode(ev encoder.Event, desc schema_registry.Descriptor) (encoder.Message, error)
}

// Broker is the connection records are sent over. *kafka.Connection
// implements it.
type Broker interface {
	EnsureReady(ctx context.Context) error
	Send(ctx context.Context, msg kafka.Message) (kafka.Ack, error)
}

// Result describes an acknowledged publish.
type Result struct {
	Topic     string
	Partition int
	// Offset is -1 when the broker was not asked to acknowledge.
	Offset    int64
	Timestamp time.Time

	Subject  string
	SchemaID int
}
