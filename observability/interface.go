package observability

import "time"

// Observer receives a notification every time one of the pipeline packages
// (schema_registry, encoder, kafka, publisher, service) finishes an operation.
//
// Observers are optional. Packages check for nil before calling them, so the
// pipeline behaves the same with or without one.
type Observer interface {
	// ObserveOperation is called once per completed operation, successful or not.
	ObserveOperation(ctx OperationContext)
}

// OperationContext describes a single completed pipeline operation.
type OperationContext struct {
	// Component is the package that performed the operation.
	// One of: "schema_registry", "kafka", "publisher", "service".
	Component string

	// Operation names what was done.
	//   schema_registry: "register_schema", "get_schema_by_id", "get_latest_schema",
	//                    "check_compatibility", "resolve"
	//   kafka:           "connect", "produce", "disconnect"
	//   publisher:       "publish"
	//   service:         "accept"
	Operation string

	// Resource is the primary object operated on: a topic for kafka and
	// publisher operations, a subject for registry operations.
	Resource string

	// SubResource adds detail to Resource, such as a schema id or a partition.
	SubResource string

	// Duration is the wall-clock time of the operation.
	Duration time.Duration

	// Error is nil when the operation succeeded.
	Error error

	// Size is the encoded message size in bytes, when one is involved.
	Size int64

	// Metadata carries operation specific values (cache_hit, status_code, kind...).
	Metadata map[string]interface{}
}

// Status returns "success" or "error" depending on Error.
func (o OperationContext) Status() string {
	if o.Error != nil {
		return "error"
	}
	return "success"
}
