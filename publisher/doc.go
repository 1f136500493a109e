// Package publisher turns an event into an acknowledged Kafka record.
//
// A publish runs four steps and stops at the first that fails:
//
//  1. resolve the schema of "<topic>-value" (skipped for raw and json codecs)
//  2. encode the event
//  3. make sure the broker connection is Ready
//  4. send the record and wait for the acknowledgment
//
// Failures are returned as *Error carrying a Kind:
//
//	res, err := pub.Publish(ctx, encoder.Event{Topic: "orders", Key: []byte("SO-1"), Value: order})
//	switch publisher.KindOf(err) {
//	case publisher.KindEncoding:
//	    // bad payload, do not retry
//	case publisher.KindTimeout:
//	    // outcome unknown, retry with the same key
//	}
//
// Publishes sharing a key are sent one after another in submission order.
package publisher
