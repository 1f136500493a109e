// Package logger is the zap-backed structured logger for eventpipe.
//
// Entries are JSON by default, carry ISO8601 timestamps and the service name,
// and, when EnableTracing is set, the otel trace_id and span_id of the span in
// the context passed to the *WithContext methods.
//
// Every method takes an optional error and zero or more field maps:
//
//	log.ErrorWithContext(ctx, "publish failed", err, map[string]interface{}{
//	    "topic": "orders",
//	    "kind":  "connection",
//	})
//
// With fx, include logger.FXModule and provide a logger.Config; the module
// hands out both *LoggerClient and Logger.
package logger
