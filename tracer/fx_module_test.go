package tracer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
)

func eventpipeTracerConfig() Config {
	return Config{ServiceName: "eventpipe-fx", AppEnv: "test", SampleRatio: 0.5}
}

func TestFXModuleProvidesOneClient(t *testing.T) {
	var (
		client *TracerClient
		tr     Tracer
	)

	app := fxtest.New(t,
		FXModule,
		fx.Supply(eventpipeTracerConfig()),
		fx.Populate(&client, &tr),
	)
	app.RequireStart()
	defer app.RequireStop()

	require.NotNil(t, client)
	assert.Same(t, client, tr.(*TracerClient), "the publisher and the lifecycle hook must share one provider")
}

func TestFXModuleCarriesTraceContextIntoHeaders(t *testing.T) {
	var tr Tracer

	app := fxtest.New(t,
		FXModule,
		fx.Supply(Config{ServiceName: "eventpipe-fx", AppEnv: "test"}),
		fx.Populate(&tr),
	)
	app.RequireStart()
	defer app.RequireStop()

	ctx, span := tr.StartSpan(context.Background(), "publisher.publish")
	defer span.End()

	headers := tr.GetCarrier(ctx)
	assert.Regexp(t, `^00-[0-9a-f]{32}-[0-9a-f]{16}-01$`, headers["traceparent"])
}

func TestRegisterTracerLifecycleShutsProviderDown(t *testing.T) {
	client, err := NewClient(Config{ServiceName: "eventpipe-fx", AppEnv: "test"})
	require.NoError(t, err)

	app := fxtest.New(t,
		fx.Supply(client),
		fx.Invoke(RegisterTracerLifecycle),
	)
	app.RequireStart()
	app.RequireStop()

	// A stopped provider hands out non-recording spans, so nothing is
	// propagated into record headers any more.
	ctx, span := client.StartSpan(context.Background(), "publisher.publish")
	span.End()
	assert.Empty(t, client.GetCarrier(ctx))
}

func TestRegisterTracerLifecycleWithoutProvider(t *testing.T) {
	app := fxtest.New(t,
		fx.Supply(&TracerClient{}),
		fx.Invoke(RegisterTracerLifecycle),
	)
	app.RequireStart()
	assert.NotPanics(t, func() { app.RequireStop() })
}
