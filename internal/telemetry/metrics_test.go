package telemetry

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestCountersRecord(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	prev := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)
	t.Cleanup(func() { otel.SetMeterProvider(prev) })

	ins := NewInstruments()
	ctx := context.Background()
	ins.Inbound(ctx, 3)
	ins.Inbound(ctx, 3)
	ins.Outbound(ctx, 1)
	ins.BrokerError(ctx, 202)
	ins.BookDelta(ctx, true)
	ins.BookDelta(ctx, false)
	ins.EnrichmentDropped(ctx)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}

	sums := map[string]int64{}
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			sums[m.Name] = total
		}
	}

	want := map[string]int64{
		"ibgate.messages.inbound":           2,
		"ibgate.messages.outbound":          1,
		"ibgate.broker.errors":              1,
		"ibgate.book.deltas.applied":        1,
		"ibgate.book.deltas.ignored":        1,
		"ibgate.trades.enrichment.dropped":  1,
	}
	for name, wantTotal := range want {
		if sums[name] != wantTotal {
			t.Fatalf("%s = %d, want %d (all: %v)", name, sums[name], wantTotal, sums)
		}
	}
}

func TestNilInstrumentsAreSafe(t *testing.T) {
	var ins *Instruments
	ins.Inbound(context.Background(), 1)
	ins.BookDelta(context.Background(), true)
}
