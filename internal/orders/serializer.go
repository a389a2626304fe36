package orders

import (
	"github.com/shopspring/decimal"

	"github.com/coachpo/ibgate/internal/protocol"
	"github.com/coachpo/ibgate/internal/schema"
	"github.com/coachpo/ibgate/internal/wire"
)

// Per-message wire versions sent in the second field of each request.
const (
	placeOrderMsgVersion  int64 = 38
	cancelOrderMsgVersion int64 = 1
)

// gatedField is one version-conditional chunk of the place-order message.
// max of zero means "from min onward"; a non-zero max bounds features that
// were added and later special-cased away again.
type gatedField struct {
	min   protocol.Version
	max   protocol.Version
	write func(w *wire.Writer)
}

func zeroInt(p *int64) int64 {
	if p == nil {
		return 0
	}
	return *p
}

func zeroDec(p *decimal.Decimal) decimal.Decimal {
	if p == nil {
		return decimal.Zero
	}
	return *p
}

// EncodePlace serializes an order submission under the negotiated version.
//
// This is the most version-sensitive routine in the adapter: the versioned
// tail appends one gated chunk per protocol feature, in strictly ascending
// threshold order. New broker features append at the end; existing chunks
// are never reordered, so a lower-version serialization is always a byte
// prefix of a higher-version one.
func EncodePlace(v protocol.Version, req *schema.OrderRequest) *wire.Writer {
	w := wire.NewWriter()
	writeOrderCore(w, req)
	for _, f := range orderTail(req) {
		write := f.write
		if f.max != 0 {
			v.GateBetween(f.min, f.max, func() { write(w) })
			continue
		}
		v.Gate(f.min, func() { write(w) })
	}
	return w
}

// EncodeCancel serializes an order cancel request.
func EncodeCancel(txID int64) *wire.Writer {
	return wire.NewWriter().
		Int(protocol.OutCancelOrder).
		Int(cancelOrderMsgVersion).
		Int(txID)
}

// writeOrderCore appends the unconditional part of the message: fields that
// predate the version floor and are present in every supported dialect.
func writeOrderCore(w *wire.Writer, req *schema.OrderRequest) {
	cond := &req.Conditions
	sec := &req.Security
	exchange := req.Exchange
	if exchange == "" {
		exchange = sec.ID.Board
	}

	w.Int(protocol.OutPlaceOrder).
		Int(placeOrderMsgVersion).
		Int(req.TxID)

	// Contract block.
	w.Str(sec.ID.Code).
		Str(string(sec.Type)).
		Str(sec.Expiry).
		Dec(sec.Strike).
		Str(sec.Right).
		Str(sec.Multiplier).
		Str(exchange).
		Str(sec.PrimaryEx).
		Str(sec.Currency).
		Str(sec.LocalCode)

	// Main order block.
	w.Str(string(req.Side)).
		Dec(req.Volume).
		Str(string(req.Type)).
		OptDec(req.Price).
		OptDec(cond.AuxPrice).
		Str(string(req.TIF)).
		Str(cond.OCAGroup).
		Int(zeroInt(cond.OCAType)).
		Str(req.Account).
		Str(cond.OpenClose).
		Int(zeroInt(cond.Origin)).
		Str(cond.OrderRef).
		Bool(req.Transmit).
		Int(0). // parent id
		Bool(cond.BlockOrder).
		Bool(cond.SweepToFill).
		Int(0). // display size
		Int(zeroInt(cond.TriggerMethod)).
		Bool(cond.OutsideRTH).
		Bool(cond.Hidden)

	if sec.Type == schema.SecurityCombo {
		w.Int(int64(len(cond.ComboLegs)))
		for _, leg := range cond.ComboLegs {
			w.Int(leg.ContractID).
				Int(leg.Ratio).
				Str(string(leg.Side)).
				Str(leg.Exchange).
				Int(leg.OpenClose).
				Int(leg.ShortSlot).
				Str(leg.Location)
		}
	}

	// Deprecated shares-allocation slot stays on the wire as an empty field.
	w.Str("").
		Dec(zeroDec(cond.DiscretionaryAmount)).
		Str(cond.GoodAfterTime).
		Str(cond.GoodTillDate).
		Str(cond.Rule80A).
		OptDec(cond.PercentOffset).
		Str(cond.SettlingFirm).
		Bool(cond.AllOrNone).
		OptInt(cond.MinQuantity).
		OptDec(cond.Volatility).
		OptInt(cond.VolatilityType)

	// EFP basis points ride only on combo orders.
	if sec.Type == schema.SecurityCombo {
		w.OptDec(cond.BasisPoints).OptInt(cond.BasisPointsType)
	}
	w.Bool(cond.WhatIf)
}

// orderTail returns the version-gated chunks in ascending threshold order.
// This table is the declarative form of the protocol's field history; extend
// it only by appending.
func orderTail(req *schema.OrderRequest) []gatedField {
	cond := &req.Conditions
	sec := &req.Security
	isCombo := sec.Type == schema.SecurityCombo

	return []gatedField{
		{min: protocol.VerPTAOrders, write: func(w *wire.Writer) {
			w.Str(cond.FAGroup).Str(cond.FAMethod).Str(cond.FAPercentage).Str(cond.FAProfile)
		}},
		{min: protocol.VerDeltaNeutral, write: func(w *wire.Writer) {
			w.Str(cond.DeltaNeutralOrderType).OptDec(cond.DeltaNeutralAuxPrice)
		}},
		{min: protocol.VerScaleOrders2, write: func(w *wire.Writer) {
			w.OptInt(cond.ScaleInitLevelSize).OptInt(cond.ScaleSubsLevelSize).OptDec(cond.ScalePriceIncrement)
		}},
		{min: protocol.VerAlgoOrders, write: func(w *wire.Writer) {
			w.Str(cond.AlgoStrategy)
			if cond.AlgoStrategy != "" {
				w.Int(int64(len(cond.AlgoParams)))
				for _, p := range cond.AlgoParams {
					w.Str(p.Key).Str(p.Value)
				}
			}
		}},
		{min: protocol.VerNotHeld, write: func(w *wire.Writer) {
			w.Bool(cond.NotHeld)
		}},
		{min: protocol.VerPlaceOrderConID, write: func(w *wire.Writer) {
			w.Int(sec.ID.ContractID)
		}},
		{min: protocol.VerShortSaleOld, max: protocol.VerShortSale - 1, write: func(w *wire.Writer) {
			w.Int(zeroInt(cond.ShortSaleSlot)).Str(cond.DesignatedLocation)
		}},
		{min: protocol.VerShortSale, write: func(w *wire.Writer) {
			w.Int(zeroInt(cond.ShortSaleSlot)).Str(cond.DesignatedLocation).Int(zeroInt(cond.ExemptCode))
		}},
		{min: protocol.VerHedgeOrders, write: func(w *wire.Writer) {
			w.Str(cond.HedgeType)
			if cond.HedgeType != "" {
				w.Str(cond.HedgeParam)
			}
		}},
		{min: protocol.VerOptOutSmartRouting, write: func(w *wire.Writer) {
			w.Bool(cond.OptOutSmartRoute)
		}},
		{min: protocol.VerSmartComboRouting, write: func(w *wire.Writer) {
			if !isCombo {
				return
			}
			w.Int(int64(len(cond.SmartComboRouting)))
			for _, p := range cond.SmartComboRouting {
				w.Str(p.Key).Str(p.Value)
			}
		}},
		{min: protocol.VerDeltaNeutralConID, write: func(w *wire.Writer) {
			w.OptInt(cond.DeltaNeutralConID)
		}},
		{min: protocol.VerScaleOrders3, write: func(w *wire.Writer) {
			w.OptDec(cond.ScalePriceAdjustValue).
				OptInt(cond.ScalePriceAdjustInterval).
				OptDec(cond.ScaleProfitOffset).
				Bool(cond.ScaleAutoReset).
				OptInt(cond.ScaleInitPosition).
				OptInt(cond.ScaleInitFillQty).
				Bool(cond.ScaleRandomPercent)
		}},
		{min: protocol.VerOrderComboLegsPrice, write: func(w *wire.Writer) {
			if !isCombo {
				return
			}
			w.Int(int64(len(cond.ComboLegPrices)))
			for _, p := range cond.ComboLegPrices {
				w.OptDec(p)
			}
		}},
		{min: protocol.VerTrailingPercent, write: func(w *wire.Writer) {
			w.OptDec(cond.TrailStopPrice).OptDec(cond.TrailingPercent)
		}},
		{min: protocol.VerDeltaNeutralOpenClose, write: func(w *wire.Writer) {
			w.Str(cond.DeltaNeutralOpenClose).
				Bool(cond.DeltaNeutralShortSale).
				Int(zeroInt(cond.DeltaNeutralShortSlot)).
				Str(cond.DeltaNeutralDesignated)
		}},
		{min: protocol.VerTradingClass, write: func(w *wire.Writer) {
			w.Str(sec.TradingCls)
		}},
		{min: protocol.VerScaleTable, write: func(w *wire.Writer) {
			w.Str(cond.ScaleTable)
		}},
		{min: protocol.VerLinking, write: func(w *wire.Writer) {
			w.Str(cond.ClearingAccount).Str(cond.ClearingIntent)
		}},
	}
}
