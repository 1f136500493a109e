package metrics_test

import (
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/aalemi-dev/eventpipe/metrics"
)

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().String()
}

func TestFXModuleServesApplicationMetrics(t *testing.T) {
	addr := freeAddr(t)

	var obs *metrics.PipelineObserver
	app := fxtest.New(t,
		metrics.FXModule,
		fx.Supply(metrics.Config{
			SystemMetricsAddress:      metrics.Ptr(""),
			ApplicationMetricsAddress: metrics.Ptr(addr),
			ServiceName:               "fx-test",
		}),
		fx.Populate(&obs),
	)
	app.RequireStart()
	defer app.RequireStop()

	require.NotNil(t, obs)
	obs.SetConnectionState("ready")

	var resp *http.Response
	require.Eventually(t, func() bool {
		var err error
		resp, err = http.Get(fmt.Sprintf("http://%s/metrics", addr))
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
