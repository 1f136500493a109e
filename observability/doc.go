// Package observability defines the hook the event pipeline packages use to
// report completed operations.
//
// Each infrastructure package (schema_registry, kafka, publisher, service)
// accepts an optional Observer and calls it after every registry request,
// broker connect, produce and publish. Metrics are built on top of it in the
// metrics package (see metrics.PipelineObserver); anything else that wants to
// watch the pipeline can implement Observer too.
//
// Example:
//
//	type printObserver struct{}
//
//	func (printObserver) ObserveOperation(op observability.OperationContext) {
//	    fmt.Printf("%s.%s %s %s\n", op.Component, op.Operation, op.Resource, op.Status())
//	}
//
//	conn := kafka.NewConnection(cfg, transport).WithObserver(printObserver{})
//
// Several observers can be combined with Multi:
//
//	obs := observability.Multi{metricsObserver, auditObserver}
package observability
