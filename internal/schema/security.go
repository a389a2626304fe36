// Package schema defines the normalized trading-message model the adapter
// translates the terminal's wire protocol into.
package schema

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// SecurityID identifies an instrument by the composite the terminal uses:
// exchange-assigned numeric contract id, ticker code and venue/board code.
type SecurityID struct {
	ContractID int64  `json:"contract_id"`
	Code       string `json:"code"`
	Board      string `json:"board"`
}

func (id SecurityID) String() string {
	return fmt.Sprintf("%s@%s#%d", id.Code, id.Board, id.ContractID)
}

// SecurityType categorizes an instrument.
type SecurityType string

const (
	SecurityStock   SecurityType = "STK"
	SecurityOption  SecurityType = "OPT"
	SecurityFuture  SecurityType = "FUT"
	SecurityForex   SecurityType = "CASH"
	SecurityIndex   SecurityType = "IND"
	SecurityCombo   SecurityType = "BAG"
	SecurityWarrant SecurityType = "WAR"
	SecurityBond    SecurityType = "BOND"
)

// Security is a normalized instrument description. Instances are discovered
// opportunistically: any message carrying a contract description populates
// the adapter's side table, whether or not a lookup was requested.
type Security struct {
	ID         SecurityID      `json:"id"`
	Type       SecurityType    `json:"type"`
	Currency   string          `json:"currency"`
	Expiry     string          `json:"expiry,omitempty"`
	Strike     decimal.Decimal `json:"strike"`
	Right      string          `json:"right,omitempty"`
	Multiplier string          `json:"multiplier,omitempty"`
	PrimaryEx  string          `json:"primary_exchange,omitempty"`
	LocalCode  string          `json:"local_code,omitempty"`
	MarketName string          `json:"market_name,omitempty"`
	MinTick    decimal.Decimal `json:"min_tick"`
	LongName   string          `json:"long_name,omitempty"`
	TradingCls string          `json:"trading_class,omitempty"`
}
