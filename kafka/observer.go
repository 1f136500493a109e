package kafka

import (
	"time"

	"github.com/aalemi-dev/eventpipe/observability"
)

// observeOperation notifies the observer about an operation if one is configured.
//
// Notes:
//   - resource: topic for produce, "broker" for connect and disconnect
//   - subResource: partition for produce, attempt count for connect
func (c *Connection) observeOperation(operation, resource, subResource string, size int64, duration time.Duration, err error, metadata map[string]interface{}) {
	if c == nil || c.observer == nil {
		return
	}

	c.observer.ObserveOperation(observability.OperationContext{
		Component:   "kafka",
		Operation:   operation,
		Resource:    resource,
		SubResource: subResource,
		Duration:    duration,
		Error:       err,
		Size:        size,
		Metadata:    metadata,
	})
}
