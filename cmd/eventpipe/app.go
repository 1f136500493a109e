package main

import (
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/aalemi-dev/eventpipe/config"
	"github.com/aalemi-dev/eventpipe/encoder"
	"github.com/aalemi-dev/eventpipe/kafka"
	"github.com/aalemi-dev/eventpipe/logger"
	"github.com/aalemi-dev/eventpipe/metrics"
	"github.com/aalemi-dev/eventpipe/observability"
	"github.com/aalemi-dev/eventpipe/publisher"
	"github.com/aalemi-dev/eventpipe/schema_registry"
	"github.com/aalemi-dev/eventpipe/service"
	"github.com/aalemi-dev/eventpipe/tracer"
)

// appOptions assembles the application graph for cfg. The schema registry
// module is only added when the codec needs schemas.
func appOptions(cfg *config.Config) fx.Option {
	opts := []fx.Option{
		fx.Supply(
			cfg.Logger,
			cfg.Tracer,
			cfg.Metrics,
			cfg.Kafka,
			cfg.Encoder(),
			cfg.Publisher,
			cfg.Service,
		),
		logger.FXModule,
		tracer.FXModule,
		metrics.FXModule,
		kafka.FXModule,
		encoder.FXModule,
		publisher.FXModule,
		service.FXModule,
		fx.Provide(
			func(p *metrics.PipelineObserver) observability.Observer { return p },
			func(l logger.Logger) metrics.Logger { return l },
			func(l logger.Logger) kafka.Logger { return l },
			func(l logger.Logger) schema_registry.Logger { return l },
			func(l logger.Logger) publisher.Logger { return l },
			func(l logger.Logger) service.Logger { return l },
		),
		fx.WithLogger(func(l *logger.LoggerClient) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: l.Zap}
		}),
	}

	if cfg.RequiresRegistry() {
		opts = append(opts,
			fx.Supply(cfg.SchemaRegistry),
			schema_registry.FXModule,
		)
	}
	return fx.Options(opts...)
}
