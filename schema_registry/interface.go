package schema_registry

import "context"

// Registry is the remote schema registry boundary.
type Registry interface {
	// RegisterSchema registers schema under subject and returns its id. The
	// registry returns the existing id when an identical body is already
	// registered, which makes the call a register-or-fetch.
	RegisterSchema(ctx context.Context, subject, schema, schemaType string) (int, error)

	// GetSchemaByID retrieves a schema body by its id.
	GetSchemaByID(ctx context.Context, id int) (string, error)

	// GetLatestSchema retrieves the latest version registered for subject.
	GetLatestSchema(ctx context.Context, subject string) (*Metadata, error)

	// CheckCompatibility checks schema against the latest version of subject.
	CheckCompatibility(ctx context.Context, subject, schema, schemaType string) (bool, error)
}

// Metadata contains metadata about a registered schema
type Metadata struct {
	ID      int    `json:"id"`
	Version int    `json:"version"`
	Schema  string `json:"schema"`
	Subject string `json:"subject"`
	Type    string `json:"schemaType,omitempty"`
}

// Logger is the subset of logger.Logger used by this package.
type Logger interface {
	InfoWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})
	WarnWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})
	ErrorWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})
}
