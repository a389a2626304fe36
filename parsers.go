package ibgate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/coachpo/ibgate/errs"
	"github.com/coachpo/ibgate/internal/observability"
	"github.com/coachpo/ibgate/internal/protocol"
	"github.com/coachpo/ibgate/internal/schema"
	"github.com/coachpo/ibgate/internal/wire"
)

// handle is the adapter's inbound parser table, invoked from the session
// read loop. The stream is destructive, so every arm must consume the whole
// message before returning; a handler error tears the session down.
func (a *Adapter) handle(code int64, r *wire.Reader) error {
	ctx := context.Background()
	a.metrics.Inbound(ctx, code)

	switch code {
	case protocol.InTickPrice:
		return a.parseTickPrice(r)
	case protocol.InTickSize:
		return a.parseTickSize(r)
	case protocol.InTickGeneric:
		return a.parseTickGeneric(r)
	case protocol.InTickString:
		return a.parseTickString(r)
	case protocol.InTickSnapshotEnd:
		r.Int() // message version
		r.Int() // request id
		return r.Err()
	case protocol.InMarketDataType:
		return a.parseMarketDataType(r)
	case protocol.InOrderStatus:
		return a.parseOrderStatus(r)
	case protocol.InOpenOrder:
		return a.parseOpenOrder(r)
	case protocol.InOpenOrderEnd:
		r.Int()
		return r.Err()
	case protocol.InErrMsg:
		return a.parseErrMsg(ctx, r)
	case protocol.InNextValidID:
		return a.parseNextValidID(r)
	case protocol.InManagedAccts:
		return a.parseManagedAccts(r)
	case protocol.InAcctValue:
		return a.parseAcctValue(r)
	case protocol.InAcctUpdateTime:
		r.Int()
		r.Str() // hh:mm timestamp
		return r.Err()
	case protocol.InAcctDownloadEnd:
		r.Int()
		r.Str() // account
		return r.Err()
	case protocol.InPortfolioValue:
		return a.parsePortfolioValue(r)
	case protocol.InContractData:
		return a.parseContractData(r)
	case protocol.InContractDataEnd:
		r.Int()
		a.registry.Drop(r.Int())
		return r.Err()
	case protocol.InExecutionData:
		return a.parseExecutionData(r)
	case protocol.InExecutionDataEnd:
		r.Int()
		a.registry.Drop(r.Int())
		return r.Err()
	case protocol.InCommissionReport:
		return a.parseCommissionReport(ctx, r)
	case protocol.InMarketDepth:
		return a.parseMarketDepth(ctx, r, false)
	case protocol.InMarketDepthL2:
		return a.parseMarketDepth(ctx, r, true)
	case protocol.InHistoricalData:
		return a.parseHistoricalData(r)
	case protocol.InRealTimeBars:
		return a.parseRealTimeBar(r)
	case protocol.InCurrentTime:
		return a.parseCurrentTime(r)
	default:
		return errs.New(errs.KindParse,
			errs.WithMessage(fmt.Sprintf("unknown inbound message code %d", code)))
	}
}

// priceFields maps price tick types onto level-1 fields, with the size field
// implied by the same message when present.
var priceFields = map[int64]struct {
	price schema.Level1Field
	size  schema.Level1Field
}{
	protocol.TickBid:   {schema.Level1BestBid, schema.Level1BestBidVolume},
	protocol.TickAsk:   {schema.Level1BestAsk, schema.Level1BestAskVolume},
	protocol.TickLast:  {schema.Level1Last, schema.Level1LastVolume},
	protocol.TickHigh:  {schema.Level1High, ""},
	protocol.TickLow:   {schema.Level1Low, ""},
	protocol.TickOpen:  {schema.Level1Open, ""},
	protocol.TickClose: {schema.Level1Close, ""},
}

var sizeFields = map[int64]schema.Level1Field{
	protocol.TickBidSize:      schema.Level1BestBidVolume,
	protocol.TickAskSize:      schema.Level1BestAskVolume,
	protocol.TickLastSize:     schema.Level1LastVolume,
	protocol.TickVolume:       schema.Level1Volume,
	protocol.TickOpenInterest: schema.Level1OpenInterest,
}

var genericFields = map[int64]schema.Level1Field{
	protocol.TickOptHistVol:    schema.Level1HistoricalVol,
	protocol.TickOptImpliedVol: schema.Level1ImpliedVol,
}

func (a *Adapter) emitLevel1(requestID int64, field schema.Level1Field, value decimal.Decimal) {
	a.emit(schema.NewEvent(schema.EventLevel1, schema.Level1Update{
		RequestID: requestID,
		Security:  a.subscribedSecurity(requestID),
		Field:     field,
		Value:     value,
		Time:      nowFn(),
	}))
}

func (a *Adapter) parseTickPrice(r *wire.Reader) error {
	version := protocol.Version(r.Int())
	id := r.Int()
	tickType := r.Int()
	price, priceSet := r.OptDec()
	var size decimal.Decimal
	sizeSet := false
	version.Gate(2, func() {
		size = r.Dec()
		sizeSet = true
	})
	version.Gate(3, func() {
		r.Int() // can auto-execute
	})
	if err := r.Err(); err != nil {
		return err
	}

	// Unknown tick types are newer vocabulary, consumed and skipped.
	mapped, ok := priceFields[tickType]
	if !ok {
		return nil
	}
	if priceSet {
		a.emitLevel1(id, mapped.price, price)
	}
	if sizeSet && mapped.size != "" {
		a.emitLevel1(id, mapped.size, size)
	}
	return nil
}

func (a *Adapter) parseTickSize(r *wire.Reader) error {
	r.Int() // message version
	id := r.Int()
	tickType := r.Int()
	size := r.Dec()
	if err := r.Err(); err != nil {
		return err
	}
	if field, ok := sizeFields[tickType]; ok {
		a.emitLevel1(id, field, size)
	}
	return nil
}

func (a *Adapter) parseTickGeneric(r *wire.Reader) error {
	r.Int()
	id := r.Int()
	tickType := r.Int()
	value := r.Dec()
	if err := r.Err(); err != nil {
		return err
	}
	if field, ok := genericFields[tickType]; ok {
		a.emitLevel1(id, field, value)
	}
	return nil
}

func (a *Adapter) parseTickString(r *wire.Reader) error {
	r.Int()
	r.Int() // request id
	r.Int() // tick type
	r.Str() // value, no normalized field maps string ticks yet
	return r.Err()
}

func (a *Adapter) parseMarketDataType(r *wire.Reader) error {
	r.Int()
	id := r.Int()
	mode := r.Int()
	if err := r.Err(); err != nil {
		return err
	}
	observability.Log().Debug("market data delivery mode changed",
		observability.Int("request_id", id),
		observability.Int("mode", mode))
	return nil
}

func (a *Adapter) parseOrderStatus(r *wire.Reader) error {
	version := protocol.Version(r.Int())
	id := r.Int()
	status := r.Str()
	filled := r.Dec()
	remaining := r.Dec()
	avgPrice := r.Dec()
	var permID int64
	version.Gate(2, func() { permID = r.Int() })
	version.Gate(3, func() { r.Int() }) // parent id
	version.Gate(4, func() { r.Dec() }) // last fill price
	version.Gate(5, func() { r.Int() }) // client id
	version.Gate(6, func() { r.Str() }) // why held
	if err := r.Err(); err != nil {
		return err
	}

	ord, changed, err := a.tracker.ApplyStatus(id, status, filled, remaining, avgPrice, permID)
	if err != nil {
		return err
	}
	if changed {
		a.emit(schema.NewEvent(schema.EventOrderStatus, ord))
	}
	return nil
}

// parseOpenOrder consumes an open-order replay message. Orders placed by
// earlier sessions under this client id surface here at connect; they are
// folded into the tracker so later status messages correlate.
func (a *Adapter) parseOpenOrder(r *wire.Reader) error {
	version := protocol.Version(r.Int())
	orderID := r.Int()

	sec := schema.Security{}
	sec.ID.ContractID = r.Int()
	sec.ID.Code = r.Str()
	sec.Type = schema.SecurityType(r.Str())
	sec.Expiry = r.Str()
	sec.Strike = r.Dec()
	sec.Right = r.Str()
	sec.ID.Board = r.Str()
	sec.Currency = r.Str()
	sec.LocalCode = r.Str()
	version.Gate(32, func() { sec.TradingCls = r.Str() })

	r.Str() // action
	r.Dec() // total quantity
	r.Str() // order type
	r.OptDec() // limit price
	r.OptDec() // aux price
	r.Str() // time in force
	r.Str() // account
	r.Str() // open/close
	r.Int() // origin
	r.Str() // order ref
	r.Int() // client id
	permID := r.Int()
	r.Bool() // outside regular hours
	r.Bool() // hidden
	r.Dec()  // discretionary amount
	r.Str()  // good after time
	r.Str()  // good till date
	status := r.Str()
	version.Gate(26, func() { r.Bool() }) // what-if
	if err := r.Err(); err != nil {
		return err
	}

	a.rememberSecurity(sec)
	ord, changed, err := a.tracker.ApplyStatus(orderID, status, decimal.Zero, decimal.Zero, decimal.Zero, permID)
	if err != nil {
		return err
	}
	if changed {
		a.emit(schema.NewEvent(schema.EventOrderStatus, ord))
	}
	return nil
}

func (a *Adapter) parseErrMsg(ctx context.Context, r *wire.Reader) error {
	version := protocol.Version(r.Int())
	if version < 2 {
		msg := r.Str()
		if err := r.Err(); err != nil {
			return err
		}
		a.emit(schema.NewEvent(schema.EventError, errs.Broker(0, 0, msg)))
		return nil
	}
	id := r.Int()
	code := r.Int()
	msg := r.Str()
	if err := r.Err(); err != nil {
		return err
	}

	a.metrics.BrokerError(ctx, code)
	if id > 0 {
		if ord, changed := a.tracker.Fail(id); changed {
			a.emit(schema.NewEvent(schema.EventOrderStatus, ord))
		}
	}
	a.emit(schema.NewEvent(schema.EventError, errs.Broker(id, code, msg)))
	return nil
}

func (a *Adapter) parseNextValidID(r *wire.Reader) error {
	r.Int()
	id := r.Int()
	if err := r.Err(); err != nil {
		return err
	}
	a.mu.Lock()
	a.nextValidID = id
	a.mu.Unlock()
	return nil
}

func (a *Adapter) parseManagedAccts(r *wire.Reader) error {
	r.Int()
	list := r.Str()
	if err := r.Err(); err != nil {
		return err
	}
	accounts := strings.Split(list, ",")
	out := accounts[:0]
	for _, acct := range accounts {
		if acct = strings.TrimSpace(acct); acct != "" {
			out = append(out, acct)
		}
	}
	a.mu.Lock()
	a.accounts = out
	a.mu.Unlock()
	return nil
}

func (a *Adapter) parseAcctValue(r *wire.Reader) error {
	version := protocol.Version(r.Int())
	var value schema.AccountValue
	value.Key = r.Str()
	value.Value = r.Str()
	value.Currency = r.Str()
	version.Gate(2, func() { value.Account = r.Str() })
	if err := r.Err(); err != nil {
		return err
	}
	a.emit(schema.NewEvent(schema.EventAccountValue, value))
	return nil
}

func (a *Adapter) parsePortfolioValue(r *wire.Reader) error {
	version := protocol.Version(r.Int())

	sec := schema.Security{}
	version.Gate(6, func() { sec.ID.ContractID = r.Int() })
	sec.ID.Code = r.Str()
	sec.Type = schema.SecurityType(r.Str())
	sec.Expiry = r.Str()
	sec.Strike = r.Dec()
	sec.Right = r.Str()
	version.Gate(7, func() {
		sec.Multiplier = r.Str()
		sec.PrimaryEx = r.Str()
	})
	sec.Currency = r.Str()
	version.Gate(2, func() { sec.LocalCode = r.Str() })
	version.Gate(8, func() { sec.TradingCls = r.Str() })

	pos := schema.Position{Security: sec.ID}
	pos.Volume = r.Dec()
	pos.MarketPrice = r.Dec()
	pos.MarketValue = r.Dec()
	version.Gate(3, func() {
		pos.AvgCost = r.Dec()
		pos.UnrealizedPNL = r.Dec()
		pos.RealizedPNL = r.Dec()
	})
	version.Gate(4, func() { pos.Account = r.Str() })
	if err := r.Err(); err != nil {
		return err
	}

	a.rememberSecurity(sec)
	a.emit(schema.NewEvent(schema.EventPosition, pos))
	return nil
}

func (a *Adapter) parseContractData(r *wire.Reader) error {
	version := protocol.Version(r.Int())
	version.Gate(3, func() { r.Int() }) // request id, retired by contract-data-end

	sec := schema.Security{}
	sec.ID.Code = r.Str()
	sec.Type = schema.SecurityType(r.Str())
	sec.Expiry = r.Str()
	sec.Strike = r.Dec()
	sec.Right = r.Str()
	sec.ID.Board = r.Str()
	sec.Currency = r.Str()
	sec.LocalCode = r.Str()
	sec.MarketName = r.Str()
	sec.TradingCls = r.Str()
	sec.ID.ContractID = r.Int()
	sec.MinTick = r.Dec()
	sec.Multiplier = r.Str()
	r.Str() // supported order types
	r.Str() // valid exchanges
	version.Gate(2, func() { r.Int() }) // price magnifier
	version.Gate(4, func() {
		r.Int() // underlying contract id
		sec.LongName = r.Str()
		sec.PrimaryEx = r.Str()
	})
	if err := r.Err(); err != nil {
		return err
	}

	a.rememberSecurity(sec)
	a.emit(schema.NewEvent(schema.EventSecurity, sec))
	return nil
}

func (a *Adapter) parseExecutionData(r *wire.Reader) error {
	version := protocol.Version(r.Int())
	version.Gate(7, func() { r.Int() }) // request id
	orderID := r.Int()

	sec := schema.Security{}
	version.Gate(5, func() { sec.ID.ContractID = r.Int() })
	sec.ID.Code = r.Str()
	sec.Type = schema.SecurityType(r.Str())
	sec.Expiry = r.Str()
	sec.Strike = r.Dec()
	sec.Right = r.Str()
	sec.ID.Board = r.Str()
	sec.Currency = r.Str()
	sec.LocalCode = r.Str()
	version.Gate(10, func() { sec.TradingCls = r.Str() })

	trade := schema.Trade{
		OrderTxID: orderID,
		Security:  sec.ID,
	}
	trade.ExecID = r.Str()
	trade.Time = r.Date()
	trade.Account = r.Str()
	trade.Exchange = r.Str()
	switch side := r.Str(); side {
	case "BOT":
		trade.Side = schema.SideBuy
	case "SLD":
		trade.Side = schema.SideSell
	default:
		return errs.New(errs.KindParse, errs.WithMessage("unknown execution side "+side))
	}
	trade.Volume = r.Dec()
	trade.Price = r.Dec()
	version.Gate(2, func() { r.Int() }) // perm id
	version.Gate(3, func() { r.Int() }) // client id
	version.Gate(4, func() { r.Int() }) // liquidation flag
	version.Gate(6, func() {
		trade.CumVolume = r.Dec()
		trade.AvgPrice = r.Dec()
	})
	version.Gate(8, func() { r.Str() }) // order ref
	version.Gate(9, func() {
		r.Str() // economic value rule
		r.Dec() // economic value multiplier
	})
	if err := r.Err(); err != nil {
		return err
	}

	a.rememberSecurity(sec)
	a.emit(schema.NewEvent(schema.EventTrade, a.execs.Apply(trade)))
	return nil
}

func (a *Adapter) parseCommissionReport(ctx context.Context, r *wire.Reader) error {
	r.Int() // message version
	execID := r.Str()
	commission := r.Dec()
	r.Str() // currency
	realized, realizedSet := r.OptDec()
	r.OptDec() // yield
	r.Int()    // yield redemption date
	if err := r.Err(); err != nil {
		return err
	}
	if !realizedSet {
		realized = decimal.Zero
	}

	trade, ok := a.execs.Enrich(execID, commission, realized)
	if !ok {
		// Enrichment for a trade this session never saw is accepted loss.
		a.metrics.EnrichmentDropped(ctx)
		observability.Log().Debug("commission report for unknown execution",
			observability.Str("exec_id", execID))
		return nil
	}
	a.emit(schema.NewEvent(schema.EventTrade, trade))
	return nil
}

func (a *Adapter) parseMarketDepth(ctx context.Context, r *wire.Reader, l2 bool) error {
	r.Int() // message version
	id := r.Int()
	pos := r.Int()
	if l2 {
		r.Str() // market maker
	}
	op := r.Int()
	sideTok := r.Int()
	price := r.Dec()
	size := r.Dec()
	if err := r.Err(); err != nil {
		return err
	}

	side := schema.SideSell
	if sideTok == 1 {
		side = schema.SideBuy
	}
	a.mu.Lock()
	b := a.books[id]
	a.mu.Unlock()
	if b == nil {
		// Deltas racing an unsubscribe are already-consistent noise.
		a.metrics.BookDelta(ctx, false)
		return nil
	}
	snapshot, applied := b.Apply(side, op, int(pos), price, size)
	a.metrics.BookDelta(ctx, applied)
	if applied {
		snapshot.Time = nowFn()
		a.emit(schema.NewEvent(schema.EventBookSnapshot, snapshot))
	}
	return nil
}

func (a *Adapter) parseHistoricalData(r *wire.Reader) error {
	version := protocol.Version(r.Int())
	id := r.Int()
	version.Gate(2, func() {
		r.Str() // range start
		r.Str() // range end
	})
	count := r.Int()
	if err := r.Err(); err != nil {
		return err
	}
	for i := int64(0); i < count; i++ {
		candle := schema.Candle{RequestID: id}
		candle.Start = time.Unix(r.Int(), 0).UTC()
		candle.Open = r.Dec()
		candle.High = r.Dec()
		candle.Low = r.Dec()
		candle.Close = r.Dec()
		candle.Volume = r.Dec()
		r.Dec() // volume-weighted average price
		r.Str() // has-gaps flag
		version.Gate(3, func() { r.Int() }) // trade count
		if err := r.Err(); err != nil {
			return err
		}
		a.emit(schema.NewEvent(schema.EventCandle, candle))
	}
	// Bar requests are one-shot; the id dies with the final message.
	a.registry.Drop(id)
	return nil
}

func (a *Adapter) parseRealTimeBar(r *wire.Reader) error {
	r.Int() // message version
	id := r.Int()
	candle := schema.Candle{RequestID: id}
	candle.Start = time.Unix(r.Int(), 0).UTC()
	candle.Open = r.Dec()
	candle.High = r.Dec()
	candle.Low = r.Dec()
	candle.Close = r.Dec()
	candle.Volume = r.Dec()
	r.Dec() // volume-weighted average price
	r.Int() // trade count
	if err := r.Err(); err != nil {
		return err
	}
	a.emit(schema.NewEvent(schema.EventCandle, candle))
	return nil
}

func (a *Adapter) parseCurrentTime(r *wire.Reader) error {
	r.Int()
	serverTime := time.Unix(r.Int(), 0)
	if err := r.Err(); err != nil {
		return err
	}
	a.emit(schema.NewEvent(schema.EventTimeOffset, schema.TimeOffset{
		Offset:     serverTime.Sub(nowFn()),
		ServerTime: serverTime.UTC(),
	}))
	return nil
}
