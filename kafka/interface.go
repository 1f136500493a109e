package kafka

import (
	"context"
	"time"
)

// Transport is the broker boundary. Implementations do the network work; the
// Connection decides when each method may be called.
type Transport interface {
	// Connect dials the brokers and completes a handshake.
	Connect(ctx context.Context) error

	// Send produces one message and waits for the broker acknowledgment.
	Send(ctx context.Context, msg Message) (Ack, error)

	// Disconnect releases network resources. It is safe to Connect again
	// afterwards.
	Disconnect(ctx context.Context) error
}

// Message is a record ready to be produced.
type Message struct {
	Topic string
	// Key is nil for unkeyed messages.
	Key     []byte
	Value   []byte
	Headers []Header
}

// Header is a single record header.
type Header struct {
	Key   string
	Value []byte
}

// Ack is the broker's confirmation that a message was accepted.
type Ack struct {
	Topic     string
	Partition int
	// Offset is -1 when the producer does not wait for acknowledgments.
	Offset    int64
	Timestamp time.Time
}

// State is a Connection lifecycle state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateReady
	StateDisconnecting
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateDisconnecting:
		return "disconnecting"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
