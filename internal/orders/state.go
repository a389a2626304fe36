// Package orders owns the order/execution lifecycle: the mapping of wire
// status codes onto the normalized state model, the per-session order
// tracker, the execution store and the version-gated order serializer.
package orders

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/coachpo/ibgate/errs"
	"github.com/coachpo/ibgate/internal/protocol"
	"github.com/coachpo/ibgate/internal/schema"
)

// StateForStatus maps a wire status code onto the normalized state model.
// An unrecognized status is a hard parse failure; guessing would let the
// state machine drift from the terminal's view without any later signal.
func StateForStatus(status string) (schema.OrderState, error) {
	switch status {
	case protocol.StatusPendingSubmit, protocol.StatusPreSubmitted, protocol.StatusAPIPending:
		return schema.OrderPending, nil
	case protocol.StatusSubmitted, protocol.StatusPendingCancel:
		return schema.OrderActive, nil
	case protocol.StatusFilled, protocol.StatusCancelled, protocol.StatusAPICancelled:
		return schema.OrderDone, nil
	case protocol.StatusInactive:
		return schema.OrderFailed, nil
	default:
		return "", errs.New(errs.KindParse, errs.WithMessage("unknown wire order status "+status))
	}
}

// Tracker holds the normalized lifecycle state of every order this session
// submitted or learned about. It is only touched from the read loop and the
// serialized write path, so a single mutex suffices.
type Tracker struct {
	mu     sync.Mutex
	byTxID map[int64]*schema.Order
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{byTxID: make(map[int64]*schema.Order)}
}

// Register records a freshly submitted order in Pending state.
func (t *Tracker) Register(req *schema.OrderRequest) schema.Order {
	t.mu.Lock()
	defer t.mu.Unlock()
	ord := &schema.Order{
		TxID:      req.TxID,
		Security:  req.Security.ID,
		Side:      req.Side,
		Volume:    req.Volume,
		Price:     req.Price,
		State:     schema.OrderPending,
		Remaining: req.Volume,
		TIF:       req.TIF,
		Updated:   time.Now(),
	}
	t.byTxID[req.TxID] = ord
	return *ord
}

// Get returns a copy of the tracked order.
func (t *Tracker) Get(txID int64) (schema.Order, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ord, ok := t.byTxID[txID]
	if !ok {
		return schema.Order{}, false
	}
	return *ord, true
}

// ApplyStatus folds one wire status message into the tracked order and
// returns the updated snapshot. Terminal states absorb every later message:
// the snapshot is returned unchanged and changed is false. Orders first seen
// via a status message (open orders learned at connect) are created on the
// fly.
func (t *Tracker) ApplyStatus(txID int64, rawStatus string, filled, remaining, avgPrice decimal.Decimal, permID int64) (schema.Order, bool, error) {
	state, err := StateForStatus(rawStatus)
	if err != nil {
		return schema.Order{}, false, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	ord, ok := t.byTxID[txID]
	if !ok {
		ord = &schema.Order{TxID: txID}
		t.byTxID[txID] = ord
	}
	if ord.State.Terminal() {
		return *ord, false, nil
	}
	ord.State = state
	ord.RawStatus = rawStatus
	ord.Filled = filled
	ord.Remaining = remaining
	ord.AvgPrice = avgPrice
	if permID != 0 {
		ord.PermID = permID
	}
	ord.Updated = time.Now()
	return *ord, true, nil
}

// Fail marks the order Failed in response to a broker error carrying its
// transaction id. Terminal states absorb the transition.
func (t *Tracker) Fail(txID int64) (schema.Order, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ord, ok := t.byTxID[txID]
	if !ok {
		return schema.Order{}, false
	}
	if ord.State.Terminal() {
		return *ord, false
	}
	ord.State = schema.OrderFailed
	ord.Updated = time.Now()
	return *ord, true
}
