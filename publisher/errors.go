package publisher

import (
	"context"
	"errors"
	"fmt"

	"github.com/aalemi-dev/eventpipe/encoder"
	"github.com/aalemi-dev/eventpipe/kafka"
	"github.com/aalemi-dev/eventpipe/schema_registry"
)

// Kind classifies a failed publish.
type Kind int

const (
	KindUnknown Kind = iota
	// KindValidation is malformed input, rejected before any I/O.
	KindValidation
	// KindSchemaUnavailable means the registry was unreachable or rejected
	// the schema.
	KindSchemaUnavailable
	// KindEncoding means the value does not fit the schema.
	KindEncoding
	// KindConnection means the broker could not be reached.
	KindConnection
	// KindTimeout means the deadline passed. The record may or may not
	// have been written.
	KindTimeout
	// KindSend means the broker refused the record.
	KindSend
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindSchemaUnavailable:
		return "schema_unavailable"
	case KindEncoding:
		return "encoding"
	case KindConnection:
		return "connection"
	case KindTimeout:
		return "timeout"
	case KindSend:
		return "send"
	default:
		return "unknown"
	}
}

// Retryable reports whether repeating the whole publish later may succeed.
func (k Kind) Retryable() bool {
	switch k {
	case KindSchemaUnavailable, KindConnection, KindTimeout:
		return true
	default:
		return false
	}
}

// ErrValidation is wrapped by validation failures.
var ErrValidation = errors.New("invalid event")

// Error is the failure returned by Publish.
type Error struct {
	Kind    Kind
	Topic   string
	Subject string
	Err     error
}

func (e *Error) Error() string {
	if e.Subject != "" {
		return fmt.Sprintf("publish to %s (subject %s): %s: %v", e.Topic, e.Subject, e.Kind, e.Err)
	}
	return fmt.Sprintf("publish to %s: %s: %v", e.Topic, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewValidationError builds a KindValidation error for topic.
func NewValidationError(topic, reason string) *Error {
	return &Error{Kind: KindValidation, Topic: topic, Err: fmt.Errorf("%w: %s", ErrValidation, reason)}
}

// KindOf returns the kind of err. Errors that did not come out of Publish are
// classified by the package errors they wrap.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Kind
	}

	var encErr *encoder.EncodingError
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return KindTimeout
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, schema_registry.ErrSchemaUnavailable):
		return KindSchemaUnavailable
	case errors.As(err, &encErr):
		return KindEncoding
	case errors.Is(err, kafka.ErrSend):
		return KindSend
	case errors.Is(err, kafka.ErrConnection), errors.Is(err, kafka.ErrNotReady), errors.Is(err, kafka.ErrClosed):
		return KindConnection
	default:
		return KindUnknown
	}
}

type stage int

const (
	stageQueue stage = iota
	stageResolve
	stageEncode
	stageConnect
	stageSend
)

func (s stage) String() string {
	return [...]string{"queue", "resolve", "encode", "connect", "send"}[s]
}

// classify names the kind of a failure at the given stage. A done caller
// context always means Timeout. Otherwise the stage decides: a registry
// client timeout stays SchemaUnavailable, a produce deadline is Timeout.
func classify(ctx context.Context, s stage, err error) Kind {
	if ctx.Err() != nil {
		return KindTimeout
	}
	switch s {
	case stageQueue:
		return KindTimeout
	case stageResolve:
		return KindSchemaUnavailable
	case stageEncode:
		return KindEncoding
	case stageConnect:
		return KindConnection
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, kafka.ErrSend):
		return KindSend
	case errors.Is(err, kafka.ErrConnection), errors.Is(err, kafka.ErrNotReady), errors.Is(err, kafka.ErrClosed):
		return KindConnection
	default:
		return KindSend
	}
}
