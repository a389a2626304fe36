package book

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/coachpo/ibgate/internal/protocol"
	"github.com/coachpo/ibgate/internal/schema"
)

var testSec = schema.SecurityID{ContractID: 265598, Code: "AAPL", Board: "NASDAQ"}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func prices(levels []schema.BookLevel) []string {
	out := make([]string, len(levels))
	for i, l := range levels {
		out[i] = l.Price.String()
	}
	return out
}

func sizes(levels []schema.BookLevel) []string {
	out := make([]string, len(levels))
	for i, l := range levels {
		out[i] = l.Size.String()
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func seedBids(b *Book, px ...string) {
	for i, p := range px {
		b.Apply(schema.SideBuy, protocol.DepthInsert, i, dec(p), dec("1"))
	}
}

func TestInsertKeepsBidsDescendingAsksAscending(t *testing.T) {
	b := New(1, testSec)
	b.Apply(schema.SideBuy, protocol.DepthInsert, 0, dec("10.3"), dec("1"))
	b.Apply(schema.SideBuy, protocol.DepthInsert, 0, dec("10.5"), dec("2"))
	b.Apply(schema.SideBuy, protocol.DepthInsert, 1, dec("10.4"), dec("3"))
	b.Apply(schema.SideSell, protocol.DepthInsert, 0, dec("10.7"), dec("1"))
	snap, _ := b.Apply(schema.SideSell, protocol.DepthInsert, 0, dec("10.6"), dec("2"))

	if !equalStrings(prices(snap.Bids), []string{"10.5", "10.4", "10.3"}) {
		t.Fatalf("bids = %v", prices(snap.Bids))
	}
	if !equalStrings(prices(snap.Asks), []string{"10.6", "10.7"}) {
		t.Fatalf("asks = %v", prices(snap.Asks))
	}
}

func TestInsertExistingPriceAccumulatesSize(t *testing.T) {
	b := New(1, testSec)
	b.Apply(schema.SideBuy, protocol.DepthInsert, 0, dec("10.5"), dec("2"))
	snap, _ := b.Apply(schema.SideBuy, protocol.DepthInsert, 0, dec("10.5"), dec("3"))

	if len(snap.Bids) != 1 {
		t.Fatalf("duplicate price level created: %v", prices(snap.Bids))
	}
	if snap.Bids[0].Size.String() != "5" {
		t.Fatalf("size = %s, want 5", snap.Bids[0].Size)
	}
}

func TestUpdateReplacesRank(t *testing.T) {
	b := New(1, testSec)
	seedBids(b, "10.5", "10.4", "10.3")
	snap, applied := b.Apply(schema.SideBuy, protocol.DepthUpdate, 1, dec("10.4"), dec("9"))

	if !applied {
		t.Fatalf("update not applied")
	}
	if !equalStrings(sizes(snap.Bids), []string{"1", "9", "1"}) {
		t.Fatalf("sizes = %v", sizes(snap.Bids))
	}
}

func TestUpdateTrimsTail(t *testing.T) {
	// Concrete trim-rule case: bids [10.5 10.4 10.3 10.2 10.1] all size 1,
	// update(rank=2, price=10.1, size=5) removes ranks 2..4 and leaves the
	// new level at rank 2.
	b := New(1, testSec)
	seedBids(b, "10.5", "10.4", "10.3", "10.2", "10.1")
	snap, applied := b.Apply(schema.SideBuy, protocol.DepthUpdate, 2, dec("10.1"), dec("5"))

	if !applied {
		t.Fatalf("update not applied")
	}
	if !equalStrings(prices(snap.Bids), []string{"10.5", "10.4", "10.1"}) {
		t.Fatalf("bids = %v", prices(snap.Bids))
	}
	if !equalStrings(sizes(snap.Bids), []string{"1", "1", "5"}) {
		t.Fatalf("sizes = %v", sizes(snap.Bids))
	}
}

func TestUpdateWithBetterPriceReordersSide(t *testing.T) {
	b := New(1, testSec)
	seedBids(b, "10.5", "10.4", "10.3")
	snap, applied := b.Apply(schema.SideBuy, protocol.DepthUpdate, 2, dec("10.6"), dec("7"))

	if !applied {
		t.Fatalf("update not applied")
	}
	if !equalStrings(prices(snap.Bids), []string{"10.6", "10.5", "10.4"}) {
		t.Fatalf("bids = %v", prices(snap.Bids))
	}
	if snap.Bids[0].Size.String() != "7" {
		t.Fatalf("moved level lost its size: %v", sizes(snap.Bids))
	}
}

func TestUpdateToExistingPriceMergesLevel(t *testing.T) {
	b := New(1, testSec)
	seedBids(b, "10.5", "10.4", "10.3")
	snap, applied := b.Apply(schema.SideBuy, protocol.DepthUpdate, 2, dec("10.5"), dec("7"))

	if !applied {
		t.Fatalf("update not applied")
	}
	if !equalStrings(prices(snap.Bids), []string{"10.5", "10.4"}) {
		t.Fatalf("bids = %v", prices(snap.Bids))
	}
	if snap.Bids[0].Size.String() != "7" {
		t.Fatalf("merged level size = %s, want 7", snap.Bids[0].Size)
	}
}

func TestUpdateBeyondSizeAppends(t *testing.T) {
	b := New(1, testSec)
	seedBids(b, "10.5")
	snap, applied := b.Apply(schema.SideBuy, protocol.DepthUpdate, 1, dec("10.4"), dec("2"))
	if !applied {
		t.Fatalf("append-update not applied")
	}
	if !equalStrings(prices(snap.Bids), []string{"10.5", "10.4"}) {
		t.Fatalf("bids = %v", prices(snap.Bids))
	}
}

func TestOutOfRangeDeltasIgnored(t *testing.T) {
	b := New(1, testSec)
	seedBids(b, "10.5")

	if _, applied := b.Apply(schema.SideBuy, protocol.DepthUpdate, 5, dec("10.4"), dec("2")); applied {
		t.Fatalf("far out-of-range update applied")
	}
	if _, applied := b.Apply(schema.SideBuy, protocol.DepthDelete, 3, decimal.Zero, decimal.Zero); applied {
		t.Fatalf("out-of-range delete applied")
	}
	snap := b.Snapshot()
	if !equalStrings(prices(snap.Bids), []string{"10.5"}) {
		t.Fatalf("book mutated by ignored deltas: %v", prices(snap.Bids))
	}
}

func TestDeleteRemovesRank(t *testing.T) {
	b := New(1, testSec)
	seedBids(b, "10.5", "10.4", "10.3")
	snap, applied := b.Apply(schema.SideBuy, protocol.DepthDelete, 1, decimal.Zero, decimal.Zero)

	if !applied {
		t.Fatalf("delete not applied")
	}
	if !equalStrings(prices(snap.Bids), []string{"10.5", "10.3"}) {
		t.Fatalf("bids = %v", prices(snap.Bids))
	}
}

func TestOrderingInvariantUnderMixedDeltas(t *testing.T) {
	b := New(1, testSec)
	type delta struct {
		side  schema.Side
		op    int64
		pos   int
		price string
		size  string
	}
	deltas := []delta{
		{schema.SideBuy, protocol.DepthInsert, 0, "100.5", "1"},
		{schema.SideBuy, protocol.DepthInsert, 1, "100.1", "2"},
		{schema.SideBuy, protocol.DepthInsert, 1, "100.3", "3"},
		{schema.SideSell, protocol.DepthInsert, 0, "100.9", "1"},
		{schema.SideSell, protocol.DepthInsert, 0, "100.7", "2"},
		{schema.SideBuy, protocol.DepthUpdate, 1, "100.2", "4"},
		{schema.SideSell, protocol.DepthUpdate, 0, "100.8", "4"},
		{schema.SideBuy, protocol.DepthDelete, 0, "", "0"},
		{schema.SideBuy, protocol.DepthInsert, 0, "100.4", "1"},
		{schema.SideSell, protocol.DepthInsert, 2, "101.0", "5"},
		{schema.SideBuy, protocol.DepthUpdate, 1, "100.6", "2"},
		{schema.SideBuy, protocol.DepthUpdate, 2, "100.4", "3"},
		{schema.SideSell, protocol.DepthUpdate, 2, "100.6", "1"},
	}
	var snap schema.BookSnapshot
	for i, d := range deltas {
		price, size := decimal.Zero, decimal.Zero
		if d.price != "" {
			price = dec(d.price)
		}
		if d.size != "" {
			size = dec(d.size)
		}
		snap, _ = b.Apply(d.side, d.op, d.pos, price, size)

		for j := 1; j < len(snap.Bids); j++ {
			if !snap.Bids[j-1].Price.GreaterThan(snap.Bids[j].Price) {
				t.Fatalf("delta %d: bids not strictly descending: %v", i, prices(snap.Bids))
			}
		}
		for j := 1; j < len(snap.Asks); j++ {
			if !snap.Asks[j-1].Price.LessThan(snap.Asks[j].Price) {
				t.Fatalf("delta %d: asks not strictly ascending: %v", i, prices(snap.Asks))
			}
		}
	}
}

func TestSnapshotIsDetachedCopy(t *testing.T) {
	b := New(1, testSec)
	seedBids(b, "10.5", "10.4")
	snap := b.Snapshot()
	snap.Bids[0].Size = dec("99")

	fresh := b.Snapshot()
	if fresh.Bids[0].Size.String() != "1" {
		t.Fatalf("snapshot aliases internal state")
	}
}
