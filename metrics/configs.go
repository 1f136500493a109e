package metrics

// Default listen addresses for the two metrics endpoints.
const (
	DefaultSystemMetricsAddress      = ":9090"
	DefaultApplicationMetricsAddress = ":9091"

	// DefaultNamespace prefixes every pipeline metric name.
	DefaultNamespace = "eventpipe"
)

// Config controls the Prometheus registries and their HTTP endpoints.
//
// The system endpoint serves Go runtime and process collectors; the
// application endpoint serves the pipeline metrics created by
// PipelineObserver and anything registered through MetricsCollector.
type Config struct {
	// SystemMetricsAddress is the listen address of the system endpoint.
	// nil uses DefaultSystemMetricsAddress, a pointer to "" disables it.
	SystemMetricsAddress *string `mapstructure:"system_metrics_address"`

	// ApplicationMetricsAddress is the listen address of the application
	// endpoint. nil uses DefaultApplicationMetricsAddress, "" disables the
	// server (metrics are still collected in ApplicationRegistry).
	ApplicationMetricsAddress *string `mapstructure:"application_metrics_address"`

	// ServiceName is added as a constant "service" label.
	ServiceName string `mapstructure:"service_name"`

	// Namespace prefixes pipeline metric names. Defaults to "eventpipe".
	Namespace string `mapstructure:"namespace"`
}

// Ptr returns a pointer to s, for the address fields.
func Ptr(s string) *string {
	return &s
}
