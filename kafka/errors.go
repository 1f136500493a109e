package kafka

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/segmentio/kafka-go"
)

// Errors returned by this package fall into two families. ErrConnection
// covers everything that means the broker could not be reached, ErrSend
// covers a reachable broker refusing the message.
var (
	// ErrConnection is returned when the broker is unreachable or the
	// connection broke, including after EnsureReady exhausted its attempts.
	ErrConnection = errors.New("broker connection error")

	// ErrNotReady is returned by Send when the connection is not Ready.
	ErrNotReady = errors.New("broker connection not ready")

	// ErrClosed is returned once Close has been called.
	ErrClosed = errors.New("broker connection closed")

	// ErrSend is returned when the broker rejected a produce request.
	ErrSend = errors.New("broker rejected message")

	// ErrTopicNotFound is returned when topic doesn't exist
	ErrTopicNotFound = fmt.Errorf("%w: topic not found", ErrSend)

	// ErrMessageTooLarge is returned when message exceeds size limits
	ErrMessageTooLarge = fmt.Errorf("%w: message too large", ErrSend)

	// ErrAuthorizationFailed is returned when the principal may not write to the topic
	ErrAuthorizationFailed = fmt.Errorf("%w: authorization failed", ErrSend)

	// ErrLeaderNotAvailable is returned while a partition has no leader
	ErrLeaderNotAvailable = fmt.Errorf("%w: leader not available", ErrSend)

	// ErrNotLeaderForPartition is returned when broker is not the leader for partition
	ErrNotLeaderForPartition = fmt.Errorf("%w: not leader for partition", ErrSend)

	// ErrRequestTimedOut is returned when the broker did not replicate in time
	ErrRequestTimedOut = fmt.Errorf("%w: request timed out", ErrSend)

	// ErrAuthenticationFailed is returned when SASL authentication fails
	ErrAuthenticationFailed = fmt.Errorf("%w: authentication failed", ErrConnection)

	// ErrBrokerNotAvailable is returned when broker is not available
	ErrBrokerNotAvailable = fmt.Errorf("%w: broker not available", ErrConnection)

	// ErrConnectionLost is returned when an established connection breaks
	ErrConnectionLost = fmt.Errorf("%w: connection lost", ErrConnection)
)

// protocolErrors maps broker error codes to the package errors.
var protocolErrors = map[kafka.Error]error{
	kafka.UnknownTopicOrPartition:      ErrTopicNotFound,
	kafka.InvalidTopic:                 ErrTopicNotFound,
	kafka.MessageSizeTooLarge:          ErrMessageTooLarge,
	kafka.RecordListTooLarge:           ErrMessageTooLarge,
	kafka.TopicAuthorizationFailed:     ErrAuthorizationFailed,
	kafka.ClusterAuthorizationFailed:   ErrAuthorizationFailed,
	kafka.LeaderNotAvailable:           ErrLeaderNotAvailable,
	kafka.NotLeaderForPartition:        ErrNotLeaderForPartition,
	kafka.RequestTimedOut:              ErrRequestTimedOut,
	kafka.SASLAuthenticationFailed:     ErrAuthenticationFailed,
	kafka.BrokerNotAvailable:           ErrBrokerNotAvailable,
	kafka.NotEnoughReplicas:            ErrSend,
	kafka.NotEnoughReplicasAfterAppend: ErrSend,
}

// classifyError wraps err with the package error describing it. Context
// errors are returned unchanged so callers can tell their own deadline apart.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, ErrSend) || errors.Is(err, ErrConnection) {
		return err
	}

	var kerr kafka.Error
	if errors.As(err, &kerr) {
		if mapped, ok := protocolErrors[kerr]; ok {
			return fmt.Errorf("%w: %w", mapped, err)
		}
		return fmt.Errorf("%w: %w", ErrSend, err)
	}

	return translateByErrorMessage(strings.ToLower(err.Error()), err)
}

// translateByErrorMessage classifies errors that carry no broker error code,
// which is everything coming from the dialer and the network stack.
func translateByErrorMessage(errMsg string, originalErr error) error {
	var kind error
	switch {
	case strings.Contains(errMsg, "sasl"), strings.Contains(errMsg, "authentication failed"):
		kind = ErrAuthenticationFailed
	case strings.Contains(errMsg, "connection reset"),
		strings.Contains(errMsg, "connection closed"),
		strings.Contains(errMsg, "broken pipe"),
		strings.Contains(errMsg, "eof"):
		kind = ErrConnectionLost
	case strings.Contains(errMsg, "unknown topic"), strings.Contains(errMsg, "topic not found"):
		kind = ErrTopicNotFound
	case strings.Contains(errMsg, "message too large"), strings.Contains(errMsg, "record too large"):
		kind = ErrMessageTooLarge
	case strings.Contains(errMsg, "broker not available"),
		strings.Contains(errMsg, "connection refused"),
		strings.Contains(errMsg, "no such host"),
		strings.Contains(errMsg, "dial"),
		strings.Contains(errMsg, "i/o timeout"),
		strings.Contains(errMsg, "network"):
		kind = ErrBrokerNotAvailable
	default:
		kind = ErrConnection
	}
	return fmt.Errorf("%w: %w", kind, originalErr)
}

// IsRetryableError returns true if the error is retryable
func IsRetryableError(err error) bool {
	if err == nil || IsPermanentError(err) {
		return false
	}
	var kerr kafka.Error
	if errors.As(err, &kerr) && kerr.Temporary() {
		return true
	}
	switch {
	case errors.Is(err, ErrConnection),
		errors.Is(err, ErrNotReady),
		errors.Is(err, ErrLeaderNotAvailable),
		errors.Is(err, ErrNotLeaderForPartition),
		errors.Is(err, ErrRequestTimedOut):
		return true
	default:
		return false
	}
}

// IsPermanentError returns true if the error is permanent and should not be retried
func IsPermanentError(err error) bool {
	switch {
	case errors.Is(err, ErrTopicNotFound),
		errors.Is(err, ErrMessageTooLarge),
		errors.Is(err, ErrAuthorizationFailed),
		errors.Is(err, ErrAuthenticationFailed),
		errors.Is(err, ErrClosed):
		return true
	default:
		return false
	}
}
