package service

import (
	"errors"
	"net/http"

	"github.com/aalemi-dev/eventpipe/kafka"
	"github.com/aalemi-dev/eventpipe/publisher"
)

// ErrShuttingDown is returned by Accept once Shutdown has started.
var ErrShuttingDown = errors.New("service is shutting down")

// ErrorBody is the JSON error envelope written by the HTTP handler.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes a failed request without exposing internals.
type ErrorDetail struct {
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	Topic     string `json:"topic,omitempty"`
	Retryable bool   `json:"retryable"`
}

// StatusFor maps an Accept error to an HTTP status. Client faults are 4xx,
// infrastructure faults 5xx.
func StatusFor(err error) int {
	if errors.Is(err, ErrShuttingDown) {
		return http.StatusServiceUnavailable
	}
	switch publisher.KindOf(err) {
	case publisher.KindValidation:
		return http.StatusBadRequest
	case publisher.KindEncoding:
		return http.StatusUnprocessableEntity
	case publisher.KindSend:
		if errors.Is(err, kafka.ErrTopicNotFound) {
			return http.StatusUnprocessableEntity
		}
		return http.StatusBadGateway
	case publisher.KindSchemaUnavailable, publisher.KindConnection:
		return http.StatusServiceUnavailable
	case publisher.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// describe builds the public error detail for err.
func describe(err error) ErrorDetail {
	if errors.Is(err, ErrShuttingDown) {
		return ErrorDetail{Kind: "unavailable", Message: ErrShuttingDown.Error(), Retryable: true}
	}

	kind := publisher.KindOf(err)
	detail := ErrorDetail{Kind: kind.String(), Retryable: kind.Retryable()}

	var perr *publisher.Error
	if errors.As(err, &perr) {
		detail.Topic = perr.Topic
	}

	switch kind {
	case publisher.KindValidation, publisher.KindEncoding:
		// The caller needs the exact field or reason to fix the payload.
		detail.Message = err.Error()
		if perr != nil {
			detail.Message = perr.Err.Error()
		}
	case publisher.KindSend:
		if errors.Is(err, kafka.ErrTopicNotFound) {
			detail.Message = "topic does not exist"
		} else {
			detail.Message = "broker rejected the event"
		}
	case publisher.KindSchemaUnavailable:
		detail.Message = "schema registry unavailable"
	case publisher.KindConnection:
		detail.Message = "broker unavailable"
	case publisher.KindTimeout:
		detail.Message = "timed out, the event may or may not have been published"
	default:
		detail.Message = "internal error"
	}
	return detail
}
