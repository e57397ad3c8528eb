package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/DrFlowerkick/fk-tournament-planer-sub001/internal/notify"
)

const (
	// NotifyMetricsMeterName is the name used for the notification metrics meter
	NotifyMetricsMeterName = "github.com/DrFlowerkick/fk-tournament-planer-sub001/notify"
)

// NotifyMetrics holds the OpenTelemetry instruments for change-notification
// metrics. It implements notify.Observer so it can be attached to the broker.
type NotifyMetrics struct {
	published   metric.Int64Counter
	delivered   metric.Int64Counter
	dropped     metric.Int64Counter
	sseSessions metric.Int64UpDownCounter
}

var _ notify.Observer = (*NotifyMetrics)(nil)

// NewNotifyMetrics creates a new NotifyMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewNotifyMetrics(provider metric.MeterProvider) (*NotifyMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(NotifyMetricsMeterName)

	published, err := meter.Int64Counter(
		"tp_api_notices_published_total",
		metric.WithDescription("Total number of change notices published"),
		metric.WithUnit("{notice}"),
	)
	if err != nil {
		return nil, err
	}

	delivered, err := meter.Int64Counter(
		"tp_api_notices_delivered_total",
		metric.WithDescription("Total number of change notices delivered to subscribers"),
		metric.WithUnit("{notice}"),
	)
	if err != nil {
		return nil, err
	}

	dropped, err := meter.Int64Counter(
		"tp_api_notices_dropped_total",
		metric.WithDescription("Total number of change notices dropped for slow subscribers"),
		metric.WithUnit("{notice}"),
	)
	if err != nil {
		return nil, err
	}

	sseSessions, err := meter.Int64UpDownCounter(
		"tp_api_sse_sessions",
		metric.WithDescription("Number of currently open SSE subscription streams"),
		metric.WithUnit("{session}"),
	)
	if err != nil {
		return nil, err
	}

	return &NotifyMetrics{
		published:   published,
		delivered:   delivered,
		dropped:     dropped,
		sseSessions: sseSessions,
	}, nil
}

func kindAttrs(topic notify.Topic) []attribute.KeyValue {
	// Only the kind becomes a label; the entity id would explode cardinality.
	return []attribute.KeyValue{attribute.String("kind", string(topic.Kind))}
}

// NoticePublished counts a publish. Called under the broker lock, must not block.
func (m *NotifyMetrics) NoticePublished(topic notify.Topic) {
	if m == nil || m.published == nil {
		return
	}
	m.published.Add(context.Background(), 1, metric.WithAttributes(kindAttrs(topic)...))
}

// NoticeDelivered counts a successful hand-off to one subscriber.
func (m *NotifyMetrics) NoticeDelivered(topic notify.Topic) {
	if m == nil || m.delivered == nil {
		return
	}
	m.delivered.Add(context.Background(), 1, metric.WithAttributes(kindAttrs(topic)...))
}

// NoticeDropped counts a notice lost to a full subscriber buffer.
func (m *NotifyMetrics) NoticeDropped(topic notify.Topic) {
	if m == nil || m.dropped == nil {
		return
	}
	m.dropped.Add(context.Background(), 1, metric.WithAttributes(kindAttrs(topic)...))
}

// SSESessionStarted records a newly opened subscription stream.
func (m *NotifyMetrics) SSESessionStarted(ctx context.Context, topic notify.Topic) {
	if m == nil || m.sseSessions == nil {
		return
	}
	m.sseSessions.Add(ctx, 1, metric.WithAttributes(kindAttrs(topic)...))
}

// SSESessionEnded records a closed subscription stream.
func (m *NotifyMetrics) SSESessionEnded(ctx context.Context, topic notify.Topic) {
	if m == nil || m.sseSessions == nil {
		return
	}
	m.sseSessions.Add(ctx, -1, metric.WithAttributes(kindAttrs(topic)...))
}
