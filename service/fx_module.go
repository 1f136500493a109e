package service

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"go.uber.org/fx"

	"github.com/aalemi-dev/eventpipe/kafka"
	"github.com/aalemi-dev/eventpipe/metrics"
	"github.com/aalemi-dev/eventpipe/publisher"
)

// FXModule provides the *Service, reports connection state changes to the
// metrics observer when one is available, and serves Handler on
// Config.ListenAddress.
//
// On stop the HTTP server stops first, then Shutdown drains in-flight events
// and closes the broker connection.
var FXModule = fx.Module("service",
	fx.Provide(NewServiceWithDI),
	fx.Invoke(RegisterConnectionStateMetrics),
	fx.Invoke(RegisterServiceLifecycle),
)

// ServiceParams groups the dependencies needed to create the Service.
type ServiceParams struct {
	fx.In

	Config     Config
	Publisher  *publisher.Publisher
	Connection *kafka.Connection
	Logger     Logger `optional:"true"`
}

// NewServiceWithDI creates the Service from injected dependencies.
func NewServiceWithDI(params ServiceParams) *Service {
	svc := New(params.Config, params.Publisher, params.Connection)
	if params.Logger != nil {
		svc.WithLogger(params.Logger)
	}
	return svc
}

// StateMetricsParams groups the dependencies for connection state reporting.
type StateMetricsParams struct {
	fx.In

	Connection *kafka.Connection
	Observer   *metrics.PipelineObserver `optional:"true"`
}

// RegisterConnectionStateMetrics mirrors connection state changes into the
// connection state gauge.
func RegisterConnectionStateMetrics(params StateMetricsParams) {
	if params.Observer == nil {
		return
	}
	params.Observer.SetConnectionState(params.Connection.State().String())
	params.Connection.OnStateChange(func(_, to kafka.State) {
		params.Observer.SetConnectionState(to.String())
	})
}

// LifecycleParams groups the dependencies for lifecycle management.
type LifecycleParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    Config
	Service   *Service
	Logger    Logger `optional:"true"`
}

// RegisterServiceLifecycle drains the service on stop and, when
// ListenAddress is set, serves the HTTP handler.
func RegisterServiceLifecycle(params LifecycleParams) {
	params.Lifecycle.Append(fx.Hook{
		OnStop: params.Service.Shutdown,
	})

	if params.Config.ListenAddress == "" {
		return
	}

	server := &http.Server{
		Addr:              params.Config.ListenAddress,
		Handler:           params.Service.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	params.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp", server.Addr)
			if err != nil {
				return err
			}
			go func() {
				if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) && params.Logger != nil {
					params.Logger.ErrorWithContext(context.Background(), "http server stopped", err)
				}
			}()
			if params.Logger != nil {
				params.Logger.InfoWithContext(ctx, "http server listening", nil, map[string]interface{}{"address": ln.Addr().String()})
			}
			return nil
		},
		OnStop: server.Shutdown,
	})
}
