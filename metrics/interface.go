package metrics

// MetricsCollector creates metrics on the application registry without
// exposing Prometheus types to callers.
type MetricsCollector interface {
	// CreateCounter registers a counter vector.
	//   c := m.CreateCounter("publish_retries_total", "Publish retries", []string{"topic"})
	//   c.WithLabelValues("orders").Inc()
	CreateCounter(name, help string, labels []string) Counter

	// CreateHistogram registers a histogram vector. nil buckets use the
	// Prometheus defaults.
	CreateHistogram(name, help string, labels []string, buckets []float64) Histogram

	// CreateGauge registers a gauge vector.
	CreateGauge(name, help string, labels []string) Gauge
}
