package schema

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the normalized trade direction.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// OrderState is the normalized order lifecycle state. Done and Failed are
// terminal; no transition ever leaves them.
type OrderState string

const (
	// OrderPending means submitted but not yet acknowledged by the terminal.
	OrderPending OrderState = "Pending"
	// OrderActive means acknowledged and working.
	OrderActive OrderState = "Active"
	// OrderDone means fully filled or explicitly cancelled.
	OrderDone OrderState = "Done"
	// OrderFailed means rejected or errored.
	OrderFailed OrderState = "Failed"
)

// Terminal reports whether no further transition may be applied.
func (s OrderState) Terminal() bool {
	return s == OrderDone || s == OrderFailed
}

// OrderType is the terminal's order type vocabulary.
type OrderType string

const (
	OrderTypeLimit     OrderType = "LMT"
	OrderTypeMarket    OrderType = "MKT"
	OrderTypeStop      OrderType = "STP"
	OrderTypeStopLimit OrderType = "STP LMT"
	OrderTypeTrail     OrderType = "TRAIL"
)

// TimeInForce is the order validity vocabulary.
type TimeInForce string

const (
	TIFDay TimeInForce = "DAY"
	TIFGTC TimeInForce = "GTC"
	TIFIOC TimeInForce = "IOC"
	TIFFOK TimeInForce = "FOK"
	TIFGTD TimeInForce = "GTD"
)

// OrderRequest is a normalized order submission handed to the adapter by a
// collaborator. TxID is caller-visible and correlates every later status and
// execution back to this order.
type OrderRequest struct {
	TxID     int64            `json:"tx_id"`
	Security Security         `json:"security"`
	Side     Side             `json:"side"`
	Volume   decimal.Decimal  `json:"volume"`
	Price    *decimal.Decimal `json:"price,omitempty"` // nil for market orders
	Type     OrderType        `json:"type"`
	TIF      TimeInForce      `json:"tif"`
	Account  string           `json:"account,omitempty"`
	Exchange string           `json:"exchange,omitempty"`
	Transmit bool             `json:"transmit"`

	Conditions Conditions `json:"conditions"`
}

// Order tracks the normalized lifecycle of one submitted order.
type Order struct {
	TxID      int64            `json:"tx_id"`
	Security  SecurityID       `json:"security"`
	Side      Side             `json:"side"`
	Volume    decimal.Decimal  `json:"volume"`
	Price     *decimal.Decimal `json:"price,omitempty"`
	State     OrderState       `json:"state"`
	RawStatus string           `json:"raw_status,omitempty"`
	Filled    decimal.Decimal  `json:"filled"`
	Remaining decimal.Decimal  `json:"remaining"`
	AvgPrice  decimal.Decimal  `json:"avg_price"`
	PermID    int64            `json:"perm_id,omitempty"`
	TIF       TimeInForce      `json:"tif,omitempty"`
	Updated   time.Time        `json:"updated"`
}

// Trade is a normalized execution record. ExecID is the broker-issued string
// identity; enrichment (commission, realized P&L) arrives in later messages
// keyed by the same id.
type Trade struct {
	ExecID      string           `json:"exec_id"`
	OrderTxID   int64            `json:"order_tx_id"`
	Security    SecurityID       `json:"security"`
	Side        Side             `json:"side"`
	Price       decimal.Decimal  `json:"price"`
	Volume      decimal.Decimal  `json:"volume"`
	CumVolume   decimal.Decimal  `json:"cum_volume"`
	AvgPrice    decimal.Decimal  `json:"avg_price"`
	Time        time.Time        `json:"time"`
	Account     string           `json:"account,omitempty"`
	Exchange    string           `json:"exchange,omitempty"`
	Commission  *decimal.Decimal `json:"commission,omitempty"`
	RealizedPNL *decimal.Decimal `json:"realized_pnl,omitempty"`
	// External marks fills on orders created outside this session; they are
	// reported but never matched to a tracked order.
	External bool `json:"external,omitempty"`
}

// Position is a normalized portfolio line.
type Position struct {
	Account       string          `json:"account"`
	Security      SecurityID      `json:"security"`
	Volume        decimal.Decimal `json:"volume"`
	MarketPrice   decimal.Decimal `json:"market_price"`
	MarketValue   decimal.Decimal `json:"market_value"`
	AvgCost       decimal.Decimal `json:"avg_cost"`
	UnrealizedPNL decimal.Decimal `json:"unrealized_pnl"`
	RealizedPNL   decimal.Decimal `json:"realized_pnl"`
}
