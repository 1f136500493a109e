package encoder

import (
	"fmt"
	"strings"
)

// Codec names a value encoding strategy.
type Codec string

const (
	// CodecRaw sends string and []byte values as-is.
	CodecRaw Codec = "raw"
	// CodecJSON marshals values with encoding/json.
	CodecJSON Codec = "json"
	// CodecBinary writes schema registry framed Avro.
	CodecBinary Codec = "binary"
)

// ParseCodec accepts the codec names case-insensitively. "avro" is an alias
// for binary.
func ParseCodec(s string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "raw":
		return CodecRaw, nil
	case "json", "":
		return CodecJSON, nil
	case "binary", "avro":
		return CodecBinary, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCodec, s)
	}
}

// RequiresSchema reports whether the codec needs a registered schema.
func (c Codec) RequiresSchema() bool {
	return c == CodecBinary
}

// Valid reports whether c is one of the known codecs.
func (c Codec) Valid() bool {
	switch c {
	case CodecRaw, CodecJSON, CodecBinary:
		return true
	}
	return false
}

func (c Codec) String() string {
	return string(c)
}
