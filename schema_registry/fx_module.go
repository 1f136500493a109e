package schema_registry

import (
	"go.uber.org/fx"

	"github.com/aalemi-dev/eventpipe/observability"
)

// FXModule provides the registry *Client, the Registry interface and a
// *Cache whose schema bodies come from Config.Schemas.
//
//	app := fx.New(
//	    schema_registry.FXModule,
//	    fx.Supply(schema_registry.Config{URL: "http://localhost:8081"}),
//	)
var FXModule = fx.Module("schema_registry",
	fx.Provide(
		NewClientWithDI,
		fx.Annotate(
			func(c *Client) Registry { return c },
			fx.As(new(Registry)),
		),
		NewCacheWithDI,
	),
)

// SchemaRegistryParams groups the dependencies needed to create a Schema Registry client
type SchemaRegistryParams struct {
	fx.In

	Config   Config
	Logger   Logger                 `optional:"true"`
	Observer observability.Observer `optional:"true"`
}

// NewClientWithDI creates a Client from injected dependencies.
func NewClientWithDI(params SchemaRegistryParams) (*Client, error) {
	client, err := NewClient(params.Config)
	if err != nil {
		return nil, err
	}
	if params.Logger != nil {
		client.WithLogger(params.Logger)
	}
	if params.Observer != nil {
		client.WithObserver(params.Observer)
	}
	return client, nil
}

// CacheParams groups the dependencies of NewCacheWithDI.
type CacheParams struct {
	fx.In

	Config   Config
	Registry Registry
	Logger   Logger                 `optional:"true"`
	Observer observability.Observer `optional:"true"`
}

// NewCacheWithDI creates the process-wide schema cache.
func NewCacheWithDI(params CacheParams) *Cache {
	cache := NewCache(params.Registry, StaticSource{
		Schemas:    params.Config.Schemas,
		SchemaType: params.Config.SchemaType,
	})
	if params.Logger != nil {
		cache.WithLogger(params.Logger)
	}
	if params.Observer != nil {
		cache.WithObserver(params.Observer)
	}
	return cache
}
