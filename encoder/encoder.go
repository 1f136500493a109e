package encoder

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/linkedin/goavro/v2"

	"github.com/aalemi-dev/eventpipe/schema_registry"
)

// compiledSchema pairs the writer's schema tree with goavro's codec for the
// same body. goavro checks the body on compile and reads messages back.
type compiledSchema struct {
	root  *avroType
	codec *goavro.Codec
}

// Encoder encodes events with one configured codec. It is safe for
// concurrent use.
type Encoder struct {
	codec Codec

	mu       sync.RWMutex
	compiled map[int]*compiledSchema
}

// New creates an Encoder. An empty codec defaults to CodecJSON.
func New(cfg Config) (*Encoder, error) {
	if cfg.Codec == "" {
		cfg.Codec = CodecJSON
	}
	if !cfg.Codec.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, cfg.Codec)
	}
	return &Encoder{codec: cfg.Codec, compiled: make(map[int]*compiledSchema)}, nil
}

// Codec returns the configured codec.
func (e *Encoder) Codec() Codec {
	return e.codec
}

// Encode turns ev into a Message using desc. For CodecRaw and CodecJSON desc
// may be a placeholder.
func (e *Encoder) Encode(ev Event, desc schema_registry.Descriptor) (Message, error) {
	var (
		value []byte
		err   error
	)
	switch e.codec {
	case CodecRaw:
		value, err = encodeRaw(ev.Value)
	case CodecJSON:
		value, err = encodeJSON(ev.Value)
	case CodecBinary:
		value, err = e.encodeBinary(ev.Value, desc)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownCodec, e.codec)
	}
	if err != nil {
		return Message{}, err
	}

	msg := Message{
		Topic:   ev.Topic,
		Key:     ev.Key,
		Value:   value,
		Headers: sortedHeaders(ev.Headers),
	}
	if e.codec == CodecBinary {
		msg.SchemaID = desc.ID
	}
	return msg, nil
}

// DecodeValue reads back a CodecBinary value produced by this encoder. The
// result uses goavro's native form: records are maps and non-null union
// values are wrapped as {"branch": value}.
func (e *Encoder) DecodeValue(data []byte) (interface{}, error) {
	id, body, err := schema_registry.DecodeSchemaID(data)
	if err != nil {
		return nil, err
	}
	e.mu.RLock()
	cs, ok := e.compiled[id]
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("schema %d has not been used by this encoder", id)
	}
	native, rest, err := cs.codec.NativeFromBinary(body)
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("%d trailing bytes after value", len(rest))
	}
	return native, nil
}

func encodeRaw(v interface{}) ([]byte, error) {
	switch x := v.(type) {
	case []byte:
		return x, nil
	case json.RawMessage:
		return []byte(x), nil
	case string:
		return []byte(x), nil
	}
	return nil, &EncodingError{
		Reason: fmt.Sprintf("raw codec needs a string or bytes value, got %s", describe(v)),
		Err:    ErrUnsupportedValue,
	}
}

func encodeJSON(v interface{}) ([]byte, error) {
	out, err := json.Marshal(v)
	if err != nil {
		var ute *json.UnsupportedTypeError
		var uve *json.UnsupportedValueError
		if errors.As(err, &ute) || errors.As(err, &uve) {
			return nil, &EncodingError{Reason: err.Error(), Err: ErrUnsupportedValue}
		}
		return nil, &EncodingError{Reason: err.Error(), Err: err}
	}
	return out, nil
}

func (e *Encoder) encodeBinary(v interface{}, desc schema_registry.Descriptor) ([]byte, error) {
	if desc.IsPlaceholder() || desc.Schema == "" {
		return nil, &EncodingError{Reason: "binary codec needs a registered schema", Err: ErrSchemaRequired}
	}

	cs, err := e.compile(desc)
	if err != nil {
		return nil, &EncodingError{Reason: err.Error(), Err: err}
	}

	v, err = normalize(v)
	if err != nil {
		return nil, err
	}

	out, err := appendAvro(schema_registry.EncodeSchemaID(desc.ID), cs.root, v, "")
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Encoder) compile(desc schema_registry.Descriptor) (*compiledSchema, error) {
	e.mu.RLock()
	cs, ok := e.compiled[desc.ID]
	e.mu.RUnlock()
	if ok {
		return cs, nil
	}

	codec, err := goavro.NewCodec(desc.Schema)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSchema, err)
	}
	root, err := parseAvroSchema(desc.Schema)
	if err != nil {
		return nil, err
	}
	cs = &compiledSchema{root: root, codec: codec}

	if desc.ID > 0 {
		e.mu.Lock()
		e.compiled[desc.ID] = cs
		e.mu.Unlock()
	}
	return cs, nil
}

// normalize converts struct values to the generic map form the Avro writer
// walks, going through encoding/json so json tags are honoured.
func normalize(v interface{}) (interface{}, error) {
	switch v.(type) {
	case nil, map[string]interface{}, []interface{}, string, bool, json.Number, float64, []byte:
		return v, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, &EncodingError{Reason: err.Error(), Err: ErrUnsupportedValue}
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out interface{}
	if err := dec.Decode(&out); err != nil {
		return nil, &EncodingError{Reason: err.Error(), Err: ErrUnsupportedValue}
	}
	return out, nil
}

func sortedHeaders(h map[string]string) []Header {
	if len(h) == 0 {
		return nil
	}
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Header, 0, len(keys))
	for _, k := range keys {
		out = append(out, Header{Key: k, Value: []byte(h[k])})
	}
	return out
}
