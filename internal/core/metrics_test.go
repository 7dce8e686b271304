package core_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/swiftroute/swiftroute/internal/core"
	"github.com/swiftroute/swiftroute/internal/protocol"
	"github.com/swiftroute/swiftroute/internal/telemetry"
)

// sums collects every int64 counter as name -> summed value, and the data points by name.
func sums(t *testing.T, reader *sdkmetric.ManualReader) (map[string]int64, map[string][]metricdata.DataPoint[int64]) {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	totals := map[string]int64{}
	points := map[string][]metricdata.DataPoint[int64]{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				totals[m.Name] += dp.Value
			}
			points[m.Name] = sum.DataPoints
		}
	}
	return totals, points
}

func TestMetrics(t *testing.T) {
	tp, reader := telemetry.NewManualProvider("core-test")
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	h := start(t, core.Config{Meter: tp.Meter})

	h.port.Connect()
	h.deliver(t, protocol.EventGridData, gridJSON)
	h.deliver(t, protocol.EventNewJob, `{"ride_id": 9}`) // no driver session
	h.deliver(t, protocol.EventDriversUpdate, `"not a roster"`)
	h.port.Disconnect()
	h.port.Connect()
	h.snapshot(t)

	totals, points := sums(t, reader)
	// connect and disconnect are counted alongside server events
	assert.Equal(t, int64(6), totals["swiftroute.core.pushes"])
	assert.Equal(t, int64(2), totals["swiftroute.core.pushes.ignored"])
	assert.Equal(t, int64(2), totals["swiftroute.core.commands"], "one grid request per connect")
	assert.Equal(t, int64(1), totals["swiftroute.core.reconnects"])

	reasons := map[string]int64{}
	for _, dp := range points["swiftroute.core.pushes.ignored"] {
		reason, _ := dp.Attributes.Value(attribute.Key("reason"))
		reasons[reason.AsString()] += dp.Value
	}
	assert.Equal(t, map[string]int64{"invalid_state": 1, "malformed": 1}, reasons)
}
