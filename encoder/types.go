package encoder

// Event is a domain payload to publish.
type Event struct {
	Topic string

	// Key routes the event to a partition. nil means no key.
	Key []byte

	// Value is the structured or raw body. For CodecBinary it is usually a
	// map[string]interface{} decoded from JSON.
	Value interface{}

	Headers map[string]string
}

// Header is a single record header.
type Header struct {
	Key   string
	Value []byte
}

// Message is the encoded, wire-ready record.
type Message struct {
	Topic   string
	Key     []byte
	Value   []byte
	Headers []Header

	// SchemaID is the id embedded in Value, 0 when the codec has none.
	SchemaID int
}

// Size returns the number of key, value and header bytes.
func (m Message) Size() int {
	n := len(m.Key) + len(m.Value)
	for _, h := range m.Headers {
		n += len(h.Key) + len(h.Value)
	}
	return n
}
