package publisher

import (
	"time"

	"github.com/aalemi-dev/eventpipe/observability"
)

// observeOperation notifies the observer about a publish if one is configured.
func (p *Publisher) observeOperation(topic, subject string, size int64, duration time.Duration, err error, kind Kind) {
	if p == nil || p.observer == nil {
		return
	}

	var metadata map[string]interface{}
	if err != nil {
		metadata = map[string]interface{}{"kind": kind.String()}
	}

	p.observer.ObserveOperation(observability.OperationContext{
		Component:   "publisher",
		Operation:   "publish",
		Resource:    topic,
		SubResource: subject,
		Duration:    duration,
		Error:       err,
		Size:        size,
		Metadata:    metadata,
	})
}
