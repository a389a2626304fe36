package schema

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventType identifies a normalized inbound event category.
type EventType string

const (
	EventConnected    EventType = "CONNECTED"
	EventDisconnected EventType = "DISCONNECTED"
	EventSecurity     EventType = "SECURITY"
	EventLevel1       EventType = "LEVEL1"
	EventBookSnapshot EventType = "BOOK.SNAPSHOT"
	EventOrderStatus  EventType = "ORDER.STATUS"
	EventTrade        EventType = "TRADE"
	EventPosition     EventType = "POSITION"
	EventAccountValue EventType = "ACCOUNT.VALUE"
	EventCandle       EventType = "CANDLE"
	EventTimeOffset   EventType = "TIME.OFFSET"
	EventError        EventType = "ERROR"
)

// Event is the envelope for every normalized message the adapter emits.
// Events carry no backpressure signal; consumers must process quickly or
// buffer on their side.
type Event struct {
	ID      string    `json:"id"`
	Type    EventType `json:"type"`
	Time    time.Time `json:"time"`
	Payload any       `json:"payload"`
}

// NewEvent stamps a payload with identity and wall-clock time.
func NewEvent(typ EventType, payload any) Event {
	return Event{
		ID:      uuid.NewString(),
		Type:    typ,
		Time:    time.Now(),
		Payload: payload,
	}
}

// MarshalJSON renders the event for diagnostics and logging.
func (e Event) MarshalJSON() ([]byte, error) {
	type alias Event
	return json.Marshal(alias(e))
}

// Connected reports a completed handshake.
type Connected struct {
	ServerVersion     int64     `json:"server_version"`
	NegotiatedVersion int64     `json:"negotiated_version"`
	ConnectionTime    time.Time `json:"connection_time,omitempty"`
}

// Disconnected reports session teardown; Cause is nil for orderly shutdown.
type Disconnected struct {
	Cause error `json:"-"`
}

// Level1Field names a single level-1 market data quantity.
type Level1Field string

const (
	Level1BestBid       Level1Field = "BestBid"
	Level1BestAsk       Level1Field = "BestAsk"
	Level1BestBidVolume Level1Field = "BestBidVolume"
	Level1BestAskVolume Level1Field = "BestAskVolume"
	Level1Last          Level1Field = "Last"
	Level1LastVolume    Level1Field = "LastVolume"
	Level1High          Level1Field = "High"
	Level1Low           Level1Field = "Low"
	Level1Open          Level1Field = "Open"
	Level1Close         Level1Field = "Close"
	Level1Volume        Level1Field = "Volume"
	Level1OpenInterest  Level1Field = "OpenInterest"
	Level1ImpliedVol    Level1Field = "ImpliedVolatility"
	Level1HistoricalVol Level1Field = "HistoricalVolatility"
)

// Level1Update is one incremental named-field market data update.
type Level1Update struct {
	RequestID int64           `json:"request_id"`
	Security  SecurityID      `json:"security"`
	Field     Level1Field     `json:"field"`
	Value     decimal.Decimal `json:"value"`
	Time      time.Time       `json:"time"`
}

// BookLevel is one rendered price level.
type BookLevel struct {
	Price decimal.Decimal `json:"price"`
	Size  decimal.Decimal `json:"size"`
}

// BookSnapshot is the full two-sided book re-rendered after every delta.
// Consumers never see partial deltas.
type BookSnapshot struct {
	RequestID int64       `json:"request_id"`
	Security  SecurityID  `json:"security"`
	Bids      []BookLevel `json:"bids"`
	Asks      []BookLevel `json:"asks"`
	Time      time.Time   `json:"time"`
}

// AccountValue is one account attribute update.
type AccountValue struct {
	Account  string `json:"account,omitempty"`
	Key      string `json:"key"`
	Value    string `json:"value"`
	Currency string `json:"currency,omitempty"`
}

// Candle is one historical data bar.
type Candle struct {
	RequestID int64           `json:"request_id"`
	Start     time.Time       `json:"start"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Volume    decimal.Decimal `json:"volume"`
}

// TimeOffset is the advisory clock offset between local and server time.
type TimeOffset struct {
	Offset     time.Duration `json:"offset_ns"`
	ServerTime time.Time     `json:"server_time"`
}
