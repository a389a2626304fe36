// Package book reconstructs a two-sided order book from positional deltas.
//
// The feed addresses levels by zero-based rank within a side, not by price.
// After every delta the whole book is re-rendered; downstream consumers only
// ever see full snapshots, never partial deltas.
package book

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/coachpo/ibgate/internal/protocol"
	"github.com/coachpo/ibgate/internal/schema"
)

// Book holds the reconstructed state for one instrument. Bids are kept best
// (highest) first, asks best (lowest) first.
type Book struct {
	requestID int64
	security  schema.SecurityID
	bids      []schema.BookLevel
	asks      []schema.BookLevel
}

// New returns an empty book for the given subscription.
func New(requestID int64, security schema.SecurityID) *Book {
	return &Book{requestID: requestID, security: security}
}

// Apply mutates one side with a positional delta and returns the full
// re-rendered snapshot. The second result reports whether the delta changed
// the book; deltas addressing a rank beyond the current side size are
// ignored as already-consistent (out-of-order delivery across reconnects
// would otherwise cause spurious failures).
func (b *Book) Apply(side schema.Side, op int64, pos int, price, size decimal.Decimal) (schema.BookSnapshot, bool) {
	levels := &b.asks
	if side == schema.SideBuy {
		levels = &b.bids
	}

	applied := false
	switch op {
	case protocol.DepthInsert:
		*levels = insertLevel(*levels, side, price, size)
		applied = true
	case protocol.DepthUpdate:
		*levels, applied = updateLevel(*levels, side, pos, price, size)
	case protocol.DepthDelete:
		if pos < len(*levels) {
			*levels = append((*levels)[:pos], (*levels)[pos+1:]...)
			applied = true
		}
	}
	return b.Snapshot(), applied
}

// Snapshot renders all price levels of both sides in ranked order.
func (b *Book) Snapshot() schema.BookSnapshot {
	snap := schema.BookSnapshot{
		RequestID: b.requestID,
		Security:  b.security,
		Bids:      make([]schema.BookLevel, len(b.bids)),
		Asks:      make([]schema.BookLevel, len(b.asks)),
		Time:      time.Now(),
	}
	copy(snap.Bids, b.bids)
	copy(snap.Asks, b.asks)
	return snap
}

// better reports whether price a ranks ahead of price b on the given side.
func better(side schema.Side, a, b decimal.Decimal) bool {
	if side == schema.SideBuy {
		return a.GreaterThan(b)
	}
	return a.LessThan(b)
}

// insertLevel adds a level keeping the side ordered. The wire can send an
// insert for a price that already exists after rounding or partial state, in
// which case sizes accumulate instead of duplicating the level.
func insertLevel(levels []schema.BookLevel, side schema.Side, price, size decimal.Decimal) []schema.BookLevel {
	for i := range levels {
		if levels[i].Price.Equal(price) {
			levels[i].Size = levels[i].Size.Add(size)
			return levels
		}
		if better(side, price, levels[i].Price) {
			levels = append(levels, schema.BookLevel{})
			copy(levels[i+1:], levels[i:])
			levels[i] = schema.BookLevel{Price: price, Size: size}
			return levels
		}
	}
	return append(levels, schema.BookLevel{Price: price, Size: size})
}

// updateLevel replaces the level at rank pos. When the incoming price is
// worse than entries at or after pos, those entries are trimmed first: the
// feed is reporting that the book shrank from that rank on. The replacement
// is then placed by price, not rank, so a restated level whose price moved
// past its neighbours cannot leave the side misordered or holding the same
// price twice.
func updateLevel(levels []schema.BookLevel, side schema.Side, pos int, price, size decimal.Decimal) ([]schema.BookLevel, bool) {
	if pos > len(levels) {
		return levels, false
	}
	for pos < len(levels) && better(side, levels[pos].Price, price) {
		levels = append(levels[:pos], levels[pos+1:]...)
	}
	if pos < len(levels) {
		levels = append(levels[:pos], levels[pos+1:]...)
	}
	for i := range levels {
		if levels[i].Price.Equal(price) {
			levels[i].Size = size
			return levels, true
		}
		if better(side, price, levels[i].Price) {
			levels = append(levels, schema.BookLevel{})
			copy(levels[i+1:], levels[i:])
			levels[i] = schema.BookLevel{Price: price, Size: size}
			return levels, true
		}
	}
	return append(levels, schema.BookLevel{Price: price, Size: size}), true
}
