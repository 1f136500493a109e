package kafka

import (
	"context"

	"go.uber.org/fx"

	"github.com/aalemi-dev/eventpipe/observability"
)

// FXModule provides the process-wide *Connection and closes it on stop.
//
//	app := fx.New(
//	    kafka.FXModule,
//	    fx.Supply(kafka.Config{Brokers: []string{"localhost:9092"}}),
//	)
//
// The connection is opened on start when the brokers are reachable; if they
// are not, the error is logged and the first publish connects instead.
var FXModule = fx.Module("kafka",
	fx.Provide(
		NewClientWithDI,
	),
	fx.Invoke(RegisterConnectionLifecycle),
)

// KafkaParams groups the dependencies needed to create the connection.
type KafkaParams struct {
	fx.In

	Config   Config
	Logger   Logger                 `optional:"true"`
	Observer observability.Observer `optional:"true"`
}

// NewClientWithDI creates the Connection from injected dependencies.
func NewClientWithDI(params KafkaParams) (*Connection, error) {
	conn, err := NewClient(params.Config)
	if err != nil {
		return nil, err
	}
	if params.Logger != nil {
		conn.WithLogger(params.Logger)
	}
	if params.Observer != nil {
		conn.WithObserver(params.Observer)
	}
	return conn, nil
}

// ConnectionLifecycleParams groups the dependencies needed for lifecycle management.
type ConnectionLifecycleParams struct {
	fx.In

	Lifecycle  fx.Lifecycle
	Connection *Connection
	Logger     Logger `optional:"true"`
}

// RegisterConnectionLifecycle connects on start and closes on stop.
func RegisterConnectionLifecycle(params ConnectionLifecycleParams) {
	params.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := params.Connection.EnsureReady(ctx); err != nil && params.Logger != nil {
				params.Logger.WarnWithContext(ctx, "broker not reachable at startup, will connect on first publish", err)
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return params.Connection.Close(ctx)
		},
	})
}
