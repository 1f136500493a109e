// Package schema_registry talks to a Confluent compatible schema registry and
// caches the resolution of subjects to schema ids.
//
// Client is a thin HTTP client for the registry REST API. Cache sits in front
// of it: the first Resolve for a subject registers the configured body (or
// fetches the latest version when none is configured), concurrent misses are
// coalesced into one registry call, and the result is reused until
// Invalidate is called.
//
//	client, err := schema_registry.NewClient(schema_registry.Config{URL: "http://localhost:8081"})
//	if err != nil {
//	    return err
//	}
//	cache := schema_registry.NewCache(client, schema_registry.StaticSource{
//	    Schemas: map[string]string{"orders-value": orderSchema},
//	})
//	desc, err := cache.Resolve(ctx, "orders-value")
//
// Every failure to obtain an id matches ErrSchemaUnavailable. Refused bodies
// additionally match ErrSchemaRejected.
//
// EncodeSchemaID and DecodeSchemaID implement the 5-byte wire header
// (magic byte 0x0 followed by the big-endian schema id) that prefixes
// registry-encoded messages.
package schema_registry
