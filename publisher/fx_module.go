package publisher

import (
	"go.uber.org/fx"

	"github.com/aalemi-dev/eventpipe/encoder"
	"github.com/aalemi-dev/eventpipe/kafka"
	"github.com/aalemi-dev/eventpipe/observability"
	"github.com/aalemi-dev/eventpipe/schema_registry"
	"github.com/aalemi-dev/eventpipe/tracer"
)

// FXModule provides the *Publisher. It needs a publisher.Config, an
// *encoder.Encoder and a *kafka.Connection; the schema cache is only required
// when the codec needs schemas.
var FXModule = fx.Module("publisher",
	fx.Provide(NewPublisherWithDI),
)

// PublisherParams groups the dependencies needed to create a Publisher.
type PublisherParams struct {
	fx.In

	Config     Config
	Encoder    *encoder.Encoder
	Connection *kafka.Connection
	Cache      *schema_registry.Cache `optional:"true"`
	Tracer     tracer.Tracer          `optional:"true"`
	Logger     Logger                 `optional:"true"`
	Observer   observability.Observer `optional:"true"`
}

// NewPublisherWithDI creates a Publisher from injected dependencies.
func NewPublisherWithDI(params PublisherParams) (*Publisher, error) {
	var resolver SchemaResolver
	if params.Cache != nil {
		resolver = params.Cache
	}

	p, err := New(params.Config, resolver, params.Encoder, params.Connection)
	if err != nil {
		return nil, err
	}
	if params.Tracer != nil {
		p.WithTracer(params.Tracer)
	}
	if params.Logger != nil {
		p.WithLogger(params.Logger)
	}
	if params.Observer != nil {
		p.WithObserver(params.Observer)
	}
	return p, nil
}
