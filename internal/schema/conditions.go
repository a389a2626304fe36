package schema

import "github.com/shopspring/decimal"

// ComboLeg is one leg of a multi-leg (combo) order.
type ComboLeg struct {
	ContractID int64  `json:"contract_id"`
	Ratio      int64  `json:"ratio"`
	Side       Side   `json:"side"`
	Exchange   string `json:"exchange"`
	OpenClose  int64  `json:"open_close"`
	ShortSlot  int64  `json:"short_slot,omitempty"`
	Location   string `json:"location,omitempty"`
}

// AlgoParam is one key/value parameter of an algorithmic order strategy.
type AlgoParam struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Conditions is the broker-specific bag of optional order parameters.
//
// Unlike the terminal's own API this is a closed set with explicit presence:
// a nil pointer means the field is absent, and the place-order serializer
// walks the set field by field, each behind its own version gate, in the
// fixed historical order the wire defines. Extending the protocol means
// appending one more gated field at the end, never reordering.
type Conditions struct {
	// Discretionary amount added to the limit price when working the order.
	DiscretionaryAmount *decimal.Decimal `json:"discretionary_amount,omitempty"`

	// Short-sale slot: 1 broker-located, 2 third-party. DesignatedLocation
	// accompanies slot 2.
	ShortSaleSlot      *int64 `json:"short_sale_slot,omitempty"`
	DesignatedLocation string `json:"designated_location,omitempty"`
	ExemptCode         *int64 `json:"exempt_code,omitempty"`

	// OCA (one-cancels-all) group membership.
	OCAGroup string `json:"oca_group,omitempty"`
	OCAType  *int64 `json:"oca_type,omitempty"`

	// Institutional clearing info.
	FAGroup          string `json:"fa_group,omitempty"`
	FAMethod         string `json:"fa_method,omitempty"`
	FAPercentage     string `json:"fa_percentage,omitempty"`
	FAProfile        string `json:"fa_profile,omitempty"`
	ClearingAccount  string `json:"clearing_account,omitempty"`
	ClearingIntent   string `json:"clearing_intent,omitempty"`
	SettlingFirm     string `json:"settling_firm,omitempty"`
	OpenClose        string `json:"open_close,omitempty"`
	Origin           *int64 `json:"origin,omitempty"`
	OrderRef         string `json:"order_ref,omitempty"`
	GoodAfterTime    string `json:"good_after_time,omitempty"`
	GoodTillDate     string `json:"good_till_date,omitempty"`
	Rule80A          string `json:"rule_80a,omitempty"`
	AllOrNone        bool   `json:"all_or_none,omitempty"`
	MinQuantity      *int64 `json:"min_quantity,omitempty"`
	PercentOffset    *decimal.Decimal `json:"percent_offset,omitempty"`
	Hidden           bool   `json:"hidden,omitempty"`
	OutsideRTH       bool   `json:"outside_rth,omitempty"`
	SweepToFill      bool   `json:"sweep_to_fill,omitempty"`
	BlockOrder       bool   `json:"block_order,omitempty"`
	NotHeld          bool   `json:"not_held,omitempty"`
	OptOutSmartRoute bool   `json:"opt_out_smart_route,omitempty"`
	WhatIf           bool   `json:"what_if,omitempty"`

	// Stop trigger and trailing parameters.
	AuxPrice        *decimal.Decimal `json:"aux_price,omitempty"`
	TrailStopPrice  *decimal.Decimal `json:"trail_stop_price,omitempty"`
	TrailingPercent *decimal.Decimal `json:"trailing_percent,omitempty"`
	TriggerMethod   *int64           `json:"trigger_method,omitempty"`

	// Volatility orders.
	Volatility     *decimal.Decimal `json:"volatility,omitempty"`
	VolatilityType *int64           `json:"volatility_type,omitempty"`

	// Scale order parameters, extended twice over the protocol's history.
	ScaleInitLevelSize  *int64           `json:"scale_init_level_size,omitempty"`
	ScaleSubsLevelSize  *int64           `json:"scale_subs_level_size,omitempty"`
	ScalePriceIncrement *decimal.Decimal `json:"scale_price_increment,omitempty"`
	ScalePriceAdjustValue    *decimal.Decimal `json:"scale_price_adjust_value,omitempty"`
	ScalePriceAdjustInterval *int64           `json:"scale_price_adjust_interval,omitempty"`
	ScaleProfitOffset        *decimal.Decimal `json:"scale_profit_offset,omitempty"`
	ScaleAutoReset           bool             `json:"scale_auto_reset,omitempty"`
	ScaleInitPosition        *int64           `json:"scale_init_position,omitempty"`
	ScaleInitFillQty         *int64           `json:"scale_init_fill_qty,omitempty"`
	ScaleRandomPercent       bool             `json:"scale_random_percent,omitempty"`
	ScaleTable               string           `json:"scale_table,omitempty"`

	// Hedging.
	HedgeType  string `json:"hedge_type,omitempty"`
	HedgeParam string `json:"hedge_param,omitempty"`

	// Delta-neutral companion order.
	DeltaNeutralOrderType  string           `json:"delta_neutral_order_type,omitempty"`
	DeltaNeutralAuxPrice   *decimal.Decimal `json:"delta_neutral_aux_price,omitempty"`
	DeltaNeutralConID      *int64           `json:"delta_neutral_con_id,omitempty"`
	DeltaNeutralOpenClose  string           `json:"delta_neutral_open_close,omitempty"`
	DeltaNeutralShortSale  bool             `json:"delta_neutral_short_sale,omitempty"`
	DeltaNeutralShortSlot  *int64           `json:"delta_neutral_short_slot,omitempty"`
	DeltaNeutralDesignated string           `json:"delta_neutral_designated,omitempty"`

	// Combo orders.
	ComboLegs          []ComboLeg        `json:"combo_legs,omitempty"`
	ComboLegPrices     []*decimal.Decimal `json:"combo_leg_prices,omitempty"`
	SmartComboRouting  []AlgoParam       `json:"smart_combo_routing,omitempty"`
	BasisPoints        *decimal.Decimal  `json:"basis_points,omitempty"`
	BasisPointsType    *int64            `json:"basis_points_type,omitempty"`

	// Algorithmic order strategy and its ordered parameters.
	AlgoStrategy string      `json:"algo_strategy,omitempty"`
	AlgoParams   []AlgoParam `json:"algo_params,omitempty"`
}
