package orders

import (
	"math"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/coachpo/ibgate/internal/schema"
)

// OverflowTxID is the corrupted correlation id some terminal builds emit
// when the originating order id overflows their 32-bit field. It must be
// normalized to zero before any correlation attempt.
const OverflowTxID = math.MaxInt32

// SanitizeTxID normalizes the known-bad correlation id values a trade
// message may carry. Zero means "order created outside this session": the
// trade is reported but never force-correlated to a tracked order.
func SanitizeTxID(id int64) int64 {
	if id == OverflowTxID {
		return 0
	}
	return id
}

// ExecutionStore keeps normalized trades keyed by the broker-issued string
// execution id so later enrichment messages can find them.
type ExecutionStore struct {
	mu       sync.Mutex
	byExecID map[string]*schema.Trade
}

// NewExecutionStore returns an empty store.
func NewExecutionStore() *ExecutionStore {
	return &ExecutionStore{byExecID: make(map[string]*schema.Trade)}
}

// Apply records a base trade message. The correlation id is sanitized; a
// resulting id of zero marks the trade as externally created.
func (s *ExecutionStore) Apply(trade schema.Trade) schema.Trade {
	trade.OrderTxID = SanitizeTxID(trade.OrderTxID)
	trade.External = trade.OrderTxID == 0

	s.mu.Lock()
	defer s.mu.Unlock()
	stored := trade
	s.byExecID[trade.ExecID] = &stored
	return trade
}

// Enrich attaches commission and realized P&L to a previously recorded
// trade. Enrichment arriving before its base trade, or referencing an
// unknown execution id, is dropped; the small loss window is an accepted
// tradeoff over buffering unmatched enrichment indefinitely.
func (s *ExecutionStore) Enrich(execID string, commission, realizedPNL decimal.Decimal) (schema.Trade, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	trade, ok := s.byExecID[execID]
	if !ok {
		return schema.Trade{}, false
	}
	c := commission
	trade.Commission = &c
	p := realizedPNL
	trade.RealizedPNL = &p
	return *trade, true
}

// Get returns a copy of the stored trade.
func (s *ExecutionStore) Get(execID string) (schema.Trade, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	trade, ok := s.byExecID[execID]
	if !ok {
		return schema.Trade{}, false
	}
	return *trade, true
}
