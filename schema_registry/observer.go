package schema_registry

import (
	"time"

	"github.com/aalemi-dev/eventpipe/observability"
)

// observeOperation notifies the observer about an operation if one is configured.
//
// Notes:
//   - resource: subject name (for subject-specific operations) or "registry" (for ID lookups)
//   - subResource: schema ID or version information
func observeOperation(o observability.Observer, operation, resource, subResource string, duration time.Duration, err error, metadata map[string]interface{}) {
	if o == nil {
		return
	}

	o.ObserveOperation(observability.OperationContext{
		Component:   "schema_registry",
		Operation:   operation,
		Resource:    resource,
		SubResource: subResource,
		Duration:    duration,
		Error:       err,
		Metadata:    metadata,
	})
}
