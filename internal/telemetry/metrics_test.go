package telemetry

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/DrFlowerkick/fk-tournament-planer-sub001/internal/notify"
)

// collectSum finds a counter by name and returns the total of its data points.
func collectSum(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "metric %s is not an int64 sum", name)
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total
		}
	}
	return 0
}

func TestNotifyMetrics(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := NewNotifyMetrics(provider)
	require.NoError(t, err)
	require.NotNil(t, m)

	topic := notify.Topic{Kind: notify.KindAddress, ID: uuid.New()}
	ctx := context.Background()

	m.NoticePublished(topic)
	m.NoticePublished(topic)
	m.NoticeDelivered(topic)
	m.NoticeDropped(topic)
	m.SSESessionStarted(ctx, topic)
	m.SSESessionStarted(ctx, topic)
	m.SSESessionEnded(ctx, topic)

	assert.Equal(t, int64(2), collectSum(t, reader, "tp_api_notices_published_total"))
	assert.Equal(t, int64(1), collectSum(t, reader, "tp_api_notices_delivered_total"))
	assert.Equal(t, int64(1), collectSum(t, reader, "tp_api_notices_dropped_total"))
	assert.Equal(t, int64(1), collectSum(t, reader, "tp_api_sse_sessions"))
}

func TestNotifyMetricsNilSafety(t *testing.T) {
	t.Parallel()

	m, err := NewNotifyMetrics(nil)
	require.NoError(t, err)
	require.Nil(t, m)

	topic := notify.Topic{Kind: notify.KindStage, ID: uuid.New()}

	// All methods must be safe on the nil receiver.
	m.NoticePublished(topic)
	m.NoticeDelivered(topic)
	m.NoticeDropped(topic)
	m.SSESessionStarted(context.Background(), topic)
	m.SSESessionEnded(context.Background(), topic)
}
