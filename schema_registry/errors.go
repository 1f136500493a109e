package schema_registry

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrSchemaUnavailable means no schema id could be obtained: the registry
	// is unreachable, failing, or refused the schema.
	ErrSchemaUnavailable = errors.New("schema unavailable")

	// ErrSchemaRejected means the registry refused the schema body, for
	// example an incompatible evolution. It matches ErrSchemaUnavailable.
	ErrSchemaRejected = fmt.Errorf("%w: schema rejected by registry", ErrSchemaUnavailable)

	// ErrSubjectNotFound means the subject has no registered versions and no
	// schema body is configured for it. It matches ErrSchemaUnavailable.
	ErrSubjectNotFound = fmt.Errorf("%w: subject not found", ErrSchemaUnavailable)

	// ErrInvalidWireFormat is returned by DecodeSchemaID.
	ErrInvalidWireFormat = errors.New("invalid schema registry wire format")
)

// StatusError is a non-2xx registry response.
type StatusError struct {
	StatusCode int
	// ErrorCode is the registry's own error_code field, when present.
	ErrorCode int
	Message   string
}

func (e *StatusError) Error() string {
	if e.ErrorCode != 0 {
		return fmt.Sprintf("schema registry returned status %d (error_code %d): %s", e.StatusCode, e.ErrorCode, e.Message)
	}
	return fmt.Sprintf("schema registry returned status %d: %s", e.StatusCode, e.Message)
}

// Unwrap classifies the response. 409 and 422 are rejections of the body,
// 404 is a missing subject or id, everything else is the registry failing.
func (e *StatusError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusConflict, http.StatusUnprocessableEntity:
		return ErrSchemaRejected
	case http.StatusNotFound:
		return ErrSubjectNotFound
	default:
		return ErrSchemaUnavailable
	}
}

// IsRetryable reports whether err may succeed on a later attempt. Rejections
// and missing subjects need a change on the caller's side first.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrSchemaRejected) || errors.Is(err, ErrSubjectNotFound) {
		return false
	}
	return errors.Is(err, ErrSchemaUnavailable)
}
