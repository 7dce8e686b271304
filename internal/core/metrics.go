package core

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type metrics struct {
	pushes     metric.Int64Counter
	ignored    metric.Int64Counter
	commands   metric.Int64Counter
	reconnects metric.Int64Counter
}

func newMetrics(meter metric.Meter) (*metrics, error) {
	pushes, err := meter.Int64Counter(
		"swiftroute.core.pushes",
		metric.WithDescription("Server pushes processed by the core"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, err
	}

	ignored, err := meter.Int64Counter(
		"swiftroute.core.pushes.ignored",
		metric.WithDescription("Server pushes ignored because they were malformed or unexpected"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, err
	}

	commands, err := meter.Int64Counter(
		"swiftroute.core.commands",
		metric.WithDescription("Commands sent to the backend"),
		metric.WithUnit("{command}"),
	)
	if err != nil {
		return nil, err
	}

	reconnects, err := meter.Int64Counter(
		"swiftroute.core.reconnects",
		metric.WithDescription("Channel reconnections"),
		metric.WithUnit("{reconnect}"),
	)
	if err != nil {
		return nil, err
	}

	return &metrics{
		pushes:     pushes,
		ignored:    ignored,
		commands:   commands,
		reconnects: reconnects,
	}, nil
}

func (m *metrics) pushReceived(event string) {
	m.pushes.Add(context.Background(), 1, metric.WithAttributes(attribute.String("event", event)))
}

func (m *metrics) pushIgnored(event, reason string) {
	m.ignored.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("event", event),
		attribute.String("reason", reason),
	))
}

func (m *metrics) commandSent(ctx context.Context, event string, err error) {
	m.commands.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event", event),
		attribute.Bool("ok", err == nil),
	))
}

func (m *metrics) reconnected() {
	m.reconnects.Add(context.Background(), 1)
}
