package metrics

import (
	"sync"

	"github.com/aalemi-dev/eventpipe/observability"
)

// DurationBuckets covers sub-millisecond cache hits up to multi-second
// broker reconnects.
var DurationBuckets = []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}

// SizeBuckets is tuned for event payloads from a few bytes to a megabyte.
var SizeBuckets = []float64{64, 256, 1024, 4096, 16384, 65536, 262144, 1048576}

// PipelineObserver turns observability.OperationContext notifications into
// Prometheus series:
//
//	eventpipe_operations_total{component,operation,status}
//	eventpipe_operation_duration_seconds{component,operation}
//	eventpipe_message_bytes{component,operation}
//	eventpipe_connection_state{state}
type PipelineObserver struct {
	operations Counter
	durations  Histogram
	sizes      Histogram
	state      Gauge

	mu        sync.Mutex
	lastState string
}

var _ observability.Observer = (*PipelineObserver)(nil)

// NewPipelineObserver registers the pipeline series on m.
func NewPipelineObserver(m MetricsCollector) *PipelineObserver {
	return &PipelineObserver{
		operations: m.CreateCounter("operations_total",
			"Completed pipeline operations by component, operation and status.",
			[]string{"component", "operation", "status"}),
		durations: m.CreateHistogram("operation_duration_seconds",
			"Wall-clock duration of pipeline operations.",
			[]string{"component", "operation"}, DurationBuckets),
		sizes: m.CreateHistogram("message_bytes",
			"Size of encoded messages handed to the broker.",
			[]string{"component", "operation"}, SizeBuckets),
		state: m.CreateGauge("connection_state",
			"1 for the current broker connection state, 0 otherwise.",
			[]string{"state"}),
	}
}

// ObserveOperation implements observability.Observer.
func (p *PipelineObserver) ObserveOperation(ctx observability.OperationContext) {
	p.operations.WithLabelValues(ctx.Component, ctx.Operation, ctx.Status()).Inc()
	p.durations.WithLabelValues(ctx.Component, ctx.Operation).Observe(ctx.Duration.Seconds())
	if ctx.Size > 0 {
		p.sizes.WithLabelValues(ctx.Component, ctx.Operation).Observe(float64(ctx.Size))
	}
}

// SetConnectionState moves the connection_state gauge to state. It has the
// signature of kafka.Connection's state change hook once adapted by the caller.
func (p *PipelineObserver) SetConnectionState(state string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.lastState != "" && p.lastState != state {
		p.state.WithLabelValues(p.lastState).Set(0)
	}
	p.state.WithLabelValues(state).Set(1)
	p.lastState = state
}
