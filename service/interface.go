package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aalemi-dev/eventpipe/encoder"
	"github.com/aalemi-dev/eventpipe/kafka"
	"github.com/aalemi-dev/eventpipe/publisher"
)

// Publisher runs the publish pipeline. *publisher.Publisher implements it.
type Publisher interface {
	Publish(ctx context.Context, ev encoder.Event) (publisher.Result, error)
}

// Connection is the broker connection owned by the service.
// *kafka.Connection implements it.
type Connection interface {
	State() kafka.State
	Close(ctx context.Context) error
}

// Request is the accepted JSON payload.
//
//	{"key": "SO-1", "value": {"customer": "Acme", "amount": 10}, "headers": {"source": "web"}}
type Request struct {
	// Key is optional; an absent key leaves partitioning to the broker.
	Key *string `json:"key,omitempty"`

	// Value is required and may be any JSON value.
	Value json.RawMessage `json:"value"`

	Headers map[string]string `json:"headers,omitempty"`
}

// Response is returned for an acknowledged event.
type Response struct {
	Topic     string    `json:"topic"`
	Partition int       `json:"partition"`
	Offset    int64     `json:"offset"`
	Timestamp time.Time `json:"timestamp"`
	EventID   string    `json:"event_id"`
}
