package metrics

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/fx"
)

// Logger is the subset of logger.Logger used for server lifecycle messages.
type Logger interface {
	Info(msg string, err error, fields ...map[string]interface{})
	Error(msg string, err error, fields ...map[string]interface{})
}

// FXModule provides *Metrics, MetricsCollector and a *PipelineObserver, and
// runs both metrics servers for the lifetime of the application.
// A metrics.Config must be provided; a Logger is optional.
var FXModule = fx.Module("metrics",
	fx.Provide(
		NewMetrics,
		fx.Annotate(
			func(m *Metrics) MetricsCollector { return m },
			fx.As(new(MetricsCollector)),
		),
		NewPipelineObserver,
	),
	fx.Invoke(RegisterMetricsLifecycle),
)

// LifecycleParams groups the lifecycle dependencies.
type LifecycleParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Metrics   *Metrics
	Logger    Logger `optional:"true"`
}

// RegisterMetricsLifecycle starts the configured servers on start and shuts
// them down on stop.
func RegisterMetricsLifecycle(p LifecycleParams) {
	servers := map[string]*http.Server{
		"system":      p.Metrics.SystemServer,
		"application": p.Metrics.ApplicationServer,
	}

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			for name, srv := range servers {
				if srv == nil {
					continue
				}
				go func(name string, srv *http.Server) {
					logInfo(p.Logger, "starting metrics server", map[string]interface{}{
						"endpoint": name,
						"address":  srv.Addr,
					})
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						logError(p.Logger, "metrics server stopped", err, map[string]interface{}{"endpoint": name})
					}
				}(name, srv)
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			var errs []error
			for name, srv := range servers {
				if srv == nil {
					continue
				}
				if err := srv.Shutdown(ctx); err != nil {
					logError(p.Logger, "metrics server shutdown failed", err, map[string]interface{}{"endpoint": name})
					errs = append(errs, err)
				}
			}
			return errors.Join(errs...)
		},
	})
}

func logInfo(l Logger, msg string, fields map[string]interface{}) {
	if l != nil {
		l.Info(msg, nil, fields)
	}
}

func logError(l Logger, msg string, err error, fields map[string]interface{}) {
	if l != nil {
		l.Error(msg, err, fields)
	}
}
