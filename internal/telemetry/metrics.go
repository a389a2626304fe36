// Package telemetry exposes the adapter's OpenTelemetry instruments.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Instruments bundles the adapter's counters. A zero value is unusable; use
// NewInstruments, which falls back to no-op instruments when no meter
// provider is installed.
type Instruments struct {
	inbound           metric.Int64Counter
	outbound          metric.Int64Counter
	brokerErrors      metric.Int64Counter
	bookDeltas        metric.Int64Counter
	bookIgnored       metric.Int64Counter
	enrichmentDropped metric.Int64Counter
}

// NewInstruments registers the adapter's instruments on the global meter.
func NewInstruments() *Instruments {
	meter := otel.Meter("ibgate")
	ins := new(Instruments)
	ins.inbound, _ = meter.Int64Counter("ibgate.messages.inbound",
		metric.WithDescription("Inbound wire messages by type code"),
		metric.WithUnit("{message}"))
	ins.outbound, _ = meter.Int64Counter("ibgate.messages.outbound",
		metric.WithDescription("Outbound wire requests"),
		metric.WithUnit("{message}"))
	ins.brokerErrors, _ = meter.Int64Counter("ibgate.broker.errors",
		metric.WithDescription("Errors reported by the terminal"),
		metric.WithUnit("{error}"))
	ins.bookDeltas, _ = meter.Int64Counter("ibgate.book.deltas.applied",
		metric.WithDescription("Order book deltas applied"),
		metric.WithUnit("{delta}"))
	ins.bookIgnored, _ = meter.Int64Counter("ibgate.book.deltas.ignored",
		metric.WithDescription("Out-of-range order book deltas ignored"),
		metric.WithUnit("{delta}"))
	ins.enrichmentDropped, _ = meter.Int64Counter("ibgate.trades.enrichment.dropped",
		metric.WithDescription("Trade enrichment messages dropped for unknown execution ids"),
		metric.WithUnit("{message}"))
	return ins
}

// Inbound counts one received wire message.
func (i *Instruments) Inbound(ctx context.Context, code int64) {
	if i == nil {
		return
	}
	i.inbound.Add(ctx, 1, metric.WithAttributes(attribute.Int64("code", code)))
}

// Outbound counts one sent wire request.
func (i *Instruments) Outbound(ctx context.Context, code int64) {
	if i == nil {
		return
	}
	i.outbound.Add(ctx, 1, metric.WithAttributes(attribute.Int64("code", code)))
}

// BrokerError counts one terminal-reported error.
func (i *Instruments) BrokerError(ctx context.Context, code int64) {
	if i == nil {
		return
	}
	i.brokerErrors.Add(ctx, 1, metric.WithAttributes(attribute.Int64("broker_code", code)))
}

// BookDelta counts one order book delta, split by whether it was applied.
func (i *Instruments) BookDelta(ctx context.Context, applied bool) {
	if i == nil {
		return
	}
	if applied {
		i.bookDeltas.Add(ctx, 1)
		return
	}
	i.bookIgnored.Add(ctx, 1)
}

// EnrichmentDropped counts one dropped trade enrichment message.
func (i *Instruments) EnrichmentDropped(ctx context.Context) {
	if i == nil {
		return
	}
	i.enrichmentDropped.Add(ctx, 1)
}
