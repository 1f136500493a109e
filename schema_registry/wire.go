package schema_registry

import (
	"encoding/binary"
	"fmt"
)

const (
	magicByte = 0x0

	// WireHeaderSize is the length of the Confluent framing header.
	WireHeaderSize = 5
)

// EncodeSchemaID encodes a schema ID in the Confluent wire format
// Format: [magic_byte][schema_id]
// - magic_byte: 0x0 (1 byte)
// - schema_id: 4 bytes (big-endian)
func EncodeSchemaID(schemaID int) []byte {
	buf := make([]byte, WireHeaderSize)
	buf[0] = magicByte
	binary.BigEndian.PutUint32(buf[1:], uint32(schemaID)) //nolint:gosec
	return buf
}

// DecodeSchemaID decodes a schema ID from the Confluent wire format
// Returns the schema ID and the remaining payload (after the 5-byte header)
func DecodeSchemaID(data []byte) (int, []byte, error) {
	if len(data) < WireHeaderSize {
		return 0, nil, fmt.Errorf("%w: expected at least %d bytes, got %d", ErrInvalidWireFormat, WireHeaderSize, len(data))
	}
	if data[0] != magicByte {
		return 0, nil, fmt.Errorf("%w: expected magic byte 0x0, got 0x%x", ErrInvalidWireFormat, data[0])
	}
	return int(binary.BigEndian.Uint32(data[1:WireHeaderSize])), data[WireHeaderSize:], nil
}
