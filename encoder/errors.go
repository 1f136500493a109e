package encoder

import (
	"errors"
	"fmt"
)

var (
	// ErrSchemaRequired is returned when CodecBinary gets a placeholder or
	// empty descriptor.
	ErrSchemaRequired = errors.New("codec requires a resolved schema")

	// ErrInvalidSchema means the schema body could not be compiled.
	ErrInvalidSchema = errors.New("invalid schema")

	// ErrSchemaMismatch means the value does not conform to the schema.
	ErrSchemaMismatch = errors.New("value does not match schema")

	// ErrUnsupportedValue means the codec cannot encode the value's Go type.
	ErrUnsupportedValue = errors.New("unsupported value")

	// ErrUnknownCodec is returned by ParseCodec and New.
	ErrUnknownCodec = errors.New("unknown codec")
)

// EncodingError reports why a value could not be encoded.
type EncodingError struct {
	// Field is the dotted path of the offending field, e.g. "customer.address.city"
	// or "items[2].sku". Empty when the whole value is at fault.
	Field  string
	Reason string
	Err    error
}

func (e *EncodingError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("encoding failed: %s", e.Reason)
	}
	return fmt.Sprintf("encoding failed: field %q: %s", e.Field, e.Reason)
}

func (e *EncodingError) Unwrap() error {
	return e.Err
}

func mismatch(path, format string, args ...interface{}) error {
	return &EncodingError{Field: path, Reason: fmt.Sprintf(format, args...), Err: ErrSchemaMismatch}
}
