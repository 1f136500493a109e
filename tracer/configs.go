package tracer

// Config controls the OpenTelemetry tracer provider.
type Config struct {
	// ServiceName identifies this process in traces. Required.
	ServiceName string `mapstructure:"service_name"`

	// AppEnv sets the deployment.environment resource attribute.
	AppEnv string `mapstructure:"app_env"`

	// EnableExport turns on the OTLP/HTTP exporter. When false spans are still
	// created and propagated into Kafka headers, but never leave the process.
	EnableExport bool `mapstructure:"enable_export"`

	// Endpoint overrides the OTLP collector host:port. Empty uses the
	// OTEL_EXPORTER_OTLP_ENDPOINT environment default.
	Endpoint string `mapstructure:"endpoint"`

	// Insecure disables TLS towards the collector.
	Insecure bool `mapstructure:"insecure"`

	// SampleRatio is the fraction of root spans sampled, between 0 and 1.
	// Zero means sample everything.
	SampleRatio float64 `mapstructure:"sample_ratio"`
}
