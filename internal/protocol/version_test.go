package protocol

import (
	"testing"
	"time"
)

func TestNegotiateTakesMinimum(t *testing.T) {
	if got := Negotiate(70, ClientVersion); got != 70 {
		t.Fatalf("Negotiate(70, client) = %s", got)
	}
	if got := Negotiate(200, ClientVersion); got != ClientVersion {
		t.Fatalf("Negotiate(200, client) = %s", got)
	}
}

func TestGateMonotonicity(t *testing.T) {
	thresholds := []Version{
		VerPTAOrders, VerAlgoOrders, VerNotHeld, VerPlaceOrderConID,
		VerShortSale, VerHedgeOrders, VerScaleOrders3, VerTrailingPercent,
		VerTradingClass, VerLinking,
	}
	for _, threshold := range thresholds {
		for _, v := range []Version{threshold - 1, threshold, threshold + 1} {
			fired := false
			v.Gate(threshold, func() { fired = true })
			want := v >= threshold
			if fired != want {
				t.Fatalf("Gate(%s) under %s fired=%v, want %v", threshold, v, fired, want)
			}
		}
	}
}

func TestGateBetweenHasTwoBounds(t *testing.T) {
	cases := []struct {
		v    Version
		want bool
	}{
		{VerShortSaleOld - 1, false},
		{VerShortSaleOld, true},
		{VerShortSale - 1, true},
		{VerShortSale, false},
		{VerShortSale + 10, false},
	}
	for _, tc := range cases {
		fired := false
		tc.v.GateBetween(VerShortSaleOld, VerShortSale-1, func() { fired = true })
		if fired != tc.want {
			t.Fatalf("GateBetween under %s fired=%v, want %v", tc.v, fired, tc.want)
		}
	}
}

func TestGatesAreIndependent(t *testing.T) {
	v := VerAlgoOrders
	calls := make([]Version, 0, 3)
	v.Gate(VerPTAOrders, func() { calls = append(calls, VerPTAOrders) })
	v.Gate(VerAlgoOrders, func() { calls = append(calls, VerAlgoOrders) })
	v.Gate(VerNotHeld, func() { calls = append(calls, VerNotHeld) })

	if len(calls) != 2 || calls[0] != VerPTAOrders || calls[1] != VerAlgoOrders {
		t.Fatalf("calls = %v", calls)
	}
}

func TestBarSizeTableRoundTrips(t *testing.T) {
	d, ok := BarSize("5 mins")
	if !ok || d != 5*time.Minute {
		t.Fatalf("BarSize(5 mins) = %v, %v", d, ok)
	}
	name, ok := BarName(5 * time.Minute)
	if !ok || name != "5 mins" {
		t.Fatalf("BarName(5m) = %q, %v", name, ok)
	}
	if _, ok := BarSize("7 mins"); ok {
		t.Fatalf("unexpected bar size accepted")
	}
}
