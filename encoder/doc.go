// Package encoder turns an outgoing event into wire-ready bytes.
//
// Three codecs are supported. CodecRaw passes strings and byte slices through
// unchanged, CodecJSON marshals the value with encoding/json, and CodecBinary
// validates the value against the resolved Avro schema and writes the
// Confluent framed Avro binary encoding (magic byte, schema id, body).
//
// Encoding is pure: no network or broker I/O happens here, and equal inputs
// always produce byte-identical output. A value that does not match its
// schema fails with an *EncodingError naming the offending field and no
// bytes are returned.
package encoder
