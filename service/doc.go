// Package service is the boundary callers publish through.
//
// Accept takes a raw JSON payload and a topic, validates both before any
// registry or broker call, and runs the publisher:
//
//	resp, err := svc.Accept(ctx, []byte(`{"key":"SO-1","value":{"customer":"Acme","amount":10}}`), "orders")
//	if err != nil {
//	    status := service.StatusFor(err) // 400, 422, 502, 503 or 504
//	}
//
// Handler exposes the same operation as POST /topics/{topic}/events.
// Shutdown stops accepting, waits for in-flight events and closes the broker
// connection the service owns.
package service
