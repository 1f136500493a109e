package logger

// Log levels accepted by Config.Level.
const (
	Debug   = "debug"
	Info    = "info"
	Warning = "warning"
	Error   = "error"
)

// Supported values for Config.Encoding.
const (
	EncodingJSON    = "json"
	EncodingConsole = "console"
)

// Config controls how the pipeline logger is built.
type Config struct {
	// Level is the minimum level written. Unknown values fall back to "info".
	Level string `mapstructure:"level"`

	// Encoding is "json" (default) or "console".
	Encoding string `mapstructure:"encoding"`

	// EnableTracing adds trace_id and span_id from the context to every
	// *WithContext entry when an otel span is recording.
	EnableTracing bool `mapstructure:"enable_tracing"`

	// ServiceName populates the "service" field of every entry.
	ServiceName string `mapstructure:"service_name"`

	// CallerSkip is the number of wrapper frames skipped when reporting the
	// caller. Defaults to 1.
	CallerSkip int `mapstructure:"caller_skip"`

	// OutputPaths defaults to stderr.
	OutputPaths []string `mapstructure:"output_paths"`
}
