package schema_registry

import "time"

const (
	// DefaultTimeout bounds every HTTP call to the registry.
	DefaultTimeout = 10 * time.Second

	// SchemaTypeAvro is the registry's default schema type.
	SchemaTypeAvro = "AVRO"
	// SchemaTypeJSON is the registry type for JSON Schema bodies.
	SchemaTypeJSON = "JSON"
	// SchemaTypeProtobuf is the registry type for protobuf bodies.
	SchemaTypeProtobuf = "PROTOBUF"

	contentType = "application/vnd.schemaregistry.v1+json"
)

// Config holds configuration for the schema registry client and cache.
type Config struct {
	// URL is the schema registry endpoint (e.g., "http://localhost:8081")
	URL string `mapstructure:"url"`

	// Username for basic auth (optional)
	Username string `mapstructure:"username"`

	// Password for basic auth (optional)
	Password string `mapstructure:"password" json:"-"` //nolint:gosec

	// Timeout for HTTP requests. Defaults to DefaultTimeout.
	Timeout time.Duration `mapstructure:"timeout"`

	// SchemaType is sent with registrations. Empty means AVRO.
	SchemaType string `mapstructure:"schema_type"`

	// Schemas maps a subject to the schema body registered for it on first
	// use. Subjects without an entry are looked up with GetLatestSchema and
	// must already exist in the registry.
	Schemas map[string]string `mapstructure:"schemas"`
}
