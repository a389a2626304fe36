package ibgate

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/coachpo/ibgate/errs"
	"github.com/coachpo/ibgate/internal/book"
	"github.com/coachpo/ibgate/internal/correlation"
	"github.com/coachpo/ibgate/internal/orders"
	"github.com/coachpo/ibgate/internal/protocol"
	"github.com/coachpo/ibgate/internal/schema"
	"github.com/coachpo/ibgate/internal/session"
	"github.com/coachpo/ibgate/internal/wire"
)

// Per-message-type versions written on outbound requests.
const (
	reqMktDataMsgVersion     int64 = 10
	cancelMktDataMsgVersion  int64 = 1
	reqMktDepthMsgVersion    int64 = 3
	cancelMktDepthMsgVersion int64 = 1
	reqContractMsgVersion    int64 = 6
	reqExecutionsMsgVersion  int64 = 3
	reqHistoryMsgVersion     int64 = 4
	cancelHistoryMsgVersion  int64 = 1
	reqAcctDataMsgVersion    int64 = 2
	reqOpenOrdersMsgVersion  int64 = 1
	reqIDsMsgVersion         int64 = 1
	reqCurrentTimeMsgVersion int64 = 1
	setLogLevelMsgVersion    int64 = 1
	reqMktDataTypeMsgVersion int64 = 1
)

const historyEndLayout = "20060102 15:04:05"

func (a *Adapter) sessionOrErr() (*session.Session, error) {
	sess := a.session()
	if sess == nil {
		return nil, errs.New(errs.KindInvalid, errs.WithMessage("adapter not connected"))
	}
	return sess, nil
}

func (a *Adapter) send(ctx context.Context, sess *session.Session, code int64, w *wire.Writer) error {
	if err := sess.Send(ctx, w); err != nil {
		return err
	}
	a.metrics.Outbound(ctx, code)
	return nil
}

// writeContract writes the instrument identification block shared by the
// subscription requests. The contract id leads when the negotiated version
// carries it; the trading class trails for newer versions.
func writeContract(w *wire.Writer, v protocol.Version, sec *schema.Security, withConID protocol.Version) {
	if withConID > 0 {
		v.Gate(withConID, func() {
			w.Int(sec.ID.ContractID)
		})
	}
	w.Str(sec.ID.Code).
		Str(string(sec.Type)).
		Str(sec.Expiry).
		Dec(sec.Strike).
		Str(sec.Right).
		Str(sec.Multiplier).
		Str(sec.ID.Board).
		Str(sec.PrimaryEx).
		Str(sec.Currency).
		Str(sec.LocalCode)
	v.Gate(protocol.VerTradingClass, func() {
		w.Str(sec.TradingCls)
	})
}

// PlaceOrder serializes and transmits a new order. The caller-assigned
// transaction id on the request correlates all later status, execution and
// error messages back to it. PlaceOrder returns once the message is written;
// acknowledgement arrives asynchronously as an ORDER.STATUS event.
func (a *Adapter) PlaceOrder(ctx context.Context, req *schema.OrderRequest) error {
	sess, err := a.sessionOrErr()
	if err != nil {
		return err
	}
	if req.TxID <= 0 {
		return errs.New(errs.KindInvalid, errs.WithMessage("order transaction id must be positive"))
	}
	a.tracker.Register(req)
	return a.send(ctx, sess, protocol.OutPlaceOrder, orders.EncodePlace(sess.Negotiated(), req))
}

// ReplaceOrder retransmits an order under its original transaction id with
// updated terms. The terminal treats a place-order message reusing a live id
// as a modification.
func (a *Adapter) ReplaceOrder(ctx context.Context, req *schema.OrderRequest) error {
	sess, err := a.sessionOrErr()
	if err != nil {
		return err
	}
	ord, ok := a.tracker.Get(req.TxID)
	if !ok {
		return errs.New(errs.KindInvalid, errs.WithMessage(
			fmt.Sprintf("replace of unknown order %d", req.TxID)), errs.WithRequestID(req.TxID))
	}
	if ord.State.Terminal() {
		return errs.New(errs.KindInvalid, errs.WithMessage(
			fmt.Sprintf("replace of terminal order %d", req.TxID)), errs.WithRequestID(req.TxID))
	}
	return a.send(ctx, sess, protocol.OutPlaceOrder, orders.EncodePlace(sess.Negotiated(), req))
}

// CancelOrder requests cancellation of a live order. Confirmation arrives as
// an ORDER.STATUS event carrying a cancelled status.
func (a *Adapter) CancelOrder(ctx context.Context, txID int64) error {
	sess, err := a.sessionOrErr()
	if err != nil {
		return err
	}
	return a.send(ctx, sess, protocol.OutCancelOrder, orders.EncodeCancel(txID))
}

// SubscribeMarketData opens a level-1 stream for the instrument and returns
// the request id later LEVEL1 events carry. Subscribing the same instrument
// twice without unsubscribing is caller bookkeeping gone wrong and panics.
func (a *Adapter) SubscribeMarketData(ctx context.Context, sec schema.Security) (int64, error) {
	sess, err := a.sessionOrErr()
	if err != nil {
		return 0, err
	}
	v := sess.Negotiated()
	key := correlation.Key{Kind: correlation.KindMarketData, Security: sec.ID.String()}
	id := a.registry.Allocate(key)
	a.mu.Lock()
	a.subs[id] = sec.ID
	a.mu.Unlock()

	ticks := make([]string, 0, len(a.cfg.GenericTicks))
	for _, t := range a.cfg.GenericTicks {
		ticks = append(ticks, strconv.FormatInt(t, 10))
	}

	w := wire.NewWriter().Int(protocol.OutReqMktData).Int(reqMktDataMsgVersion).Int(id)
	writeContract(w, v, &sec, protocol.VerReqMktDataConID)
	if sec.Type == schema.SecurityCombo {
		w.Int(0) // no combo legs on a data subscription
	}
	v.Gate(protocol.VerDeltaNeutral, func() {
		w.Bool(false) // no delta-neutral underlying
	})
	w.Str(strings.Join(ticks, ","))
	v.Gate(protocol.VerSnapshotMktData, func() {
		w.Bool(false) // streaming, not snapshot
	})

	if err := a.send(ctx, sess, protocol.OutReqMktData, w); err != nil {
		a.registry.Drop(id)
		a.forgetSubscription(id)
		return 0, err
	}
	return id, nil
}

// UnsubscribeMarketData closes the level-1 stream for the instrument.
// Unsubscribing an instrument with no live subscription panics.
func (a *Adapter) UnsubscribeMarketData(ctx context.Context, sec schema.Security) error {
	sess, err := a.sessionOrErr()
	if err != nil {
		return err
	}
	key := correlation.Key{Kind: correlation.KindMarketData, Security: sec.ID.String()}
	id := a.registry.Release(key)
	a.forgetSubscription(id)
	w := wire.NewWriter().Int(protocol.OutCancelMktData).Int(cancelMktDataMsgVersion).Int(id)
	return a.send(ctx, sess, protocol.OutCancelMktData, w)
}

// SubscribeMarketDepth opens a positional order-book stream rendering up to
// rows levels per side. Each delta re-renders the whole book as a
// BOOK.SNAPSHOT event; consumers never see partial deltas.
func (a *Adapter) SubscribeMarketDepth(ctx context.Context, sec schema.Security, rows int64) (int64, error) {
	sess, err := a.sessionOrErr()
	if err != nil {
		return 0, err
	}
	v := sess.Negotiated()
	key := correlation.Key{
		Kind:          correlation.KindDepth,
		Security:      sec.ID.String(),
		Discriminator: strconv.FormatInt(rows, 10),
	}
	id := a.registry.Allocate(key)
	a.mu.Lock()
	a.subs[id] = sec.ID
	a.books[id] = book.New(id, sec.ID)
	a.mu.Unlock()

	w := wire.NewWriter().Int(protocol.OutReqMktDepth).Int(reqMktDepthMsgVersion).Int(id)
	writeContract(w, v, &sec, 0)
	w.Int(rows)

	if err := a.send(ctx, sess, protocol.OutReqMktDepth, w); err != nil {
		a.registry.Drop(id)
		a.forgetSubscription(id)
		return 0, err
	}
	return id, nil
}

// UnsubscribeMarketDepth closes a depth stream opened with the same
// instrument and row count.
func (a *Adapter) UnsubscribeMarketDepth(ctx context.Context, sec schema.Security, rows int64) error {
	sess, err := a.sessionOrErr()
	if err != nil {
		return err
	}
	key := correlation.Key{
		Kind:          correlation.KindDepth,
		Security:      sec.ID.String(),
		Discriminator: strconv.FormatInt(rows, 10),
	}
	id := a.registry.Release(key)
	a.forgetSubscription(id)
	w := wire.NewWriter().Int(protocol.OutCancelMktDepth).Int(cancelMktDepthMsgVersion).Int(id)
	return a.send(ctx, sess, protocol.OutCancelMktDepth, w)
}

// RequestSecurity asks the terminal for the full description of an
// instrument. The answer arrives as one or more SECURITY events and also
// feeds the adapter's side table.
func (a *Adapter) RequestSecurity(ctx context.Context, sec schema.Security) (int64, error) {
	sess, err := a.sessionOrErr()
	if err != nil {
		return 0, err
	}
	v := sess.Negotiated()
	key := correlation.Key{Kind: correlation.KindLookup, Security: sec.ID.String()}
	id := a.registry.Allocate(key)

	w := wire.NewWriter().Int(protocol.OutReqContractData).Int(reqContractMsgVersion)
	v.Gate(protocol.VerContractDataChain, func() {
		w.Int(id)
	})
	v.Gate(protocol.VerContractConID, func() {
		w.Int(sec.ID.ContractID)
	})
	w.Str(sec.ID.Code).
		Str(string(sec.Type)).
		Str(sec.Expiry).
		Dec(sec.Strike).
		Str(sec.Right).
		Str(sec.Multiplier).
		Str(sec.ID.Board).
		Str(sec.Currency).
		Str(sec.LocalCode)
	v.Gate(protocol.VerTradingClass, func() {
		w.Str(sec.TradingCls)
	})
	w.Bool(false) // exclude expired contracts
	v.Gate(protocol.VerSecIDType, func() {
		w.Str("").Str("")
	})

	if err := a.send(ctx, sess, protocol.OutReqContractData, w); err != nil {
		a.registry.Drop(id)
		return 0, err
	}
	return id, nil
}

// RequestExecutions asks for this client's execution reports; each arrives
// as a TRADE event. The entry lives until the terminal's end-of-reports
// marker, so at most one report request may be in flight at a time.
func (a *Adapter) RequestExecutions(ctx context.Context) (int64, error) {
	sess, err := a.sessionOrErr()
	if err != nil {
		return 0, err
	}
	v := sess.Negotiated()
	key := correlation.Key{
		Kind:     correlation.KindExecutions,
		Security: strconv.FormatInt(a.cfg.ClientID, 10),
	}
	id := a.registry.Allocate(key)

	w := wire.NewWriter().Int(protocol.OutReqExecutions).Int(reqExecutionsMsgVersion)
	v.Gate(protocol.VerExecutionDataChain, func() {
		w.Int(id)
	})
	// Execution filter: this client, all accounts, times, instruments and
	// sides.
	w.Int(a.cfg.ClientID).Str("").Str("").Str("").Str("").Str("").Str("")

	if err := a.send(ctx, sess, protocol.OutReqExecutions, w); err != nil {
		a.registry.Drop(id)
		return 0, err
	}
	return id, nil
}

// RequestHistory asks for historical bars for the instrument, ending at end.
// barName must be one of the terminal's bar-size tokens ("1 min", "1 day",
// ...); duration is the terminal's span syntax ("1 D", "2 W"). Bars arrive
// as CANDLE events tagged with the returned request id.
func (a *Adapter) RequestHistory(ctx context.Context, sec schema.Security, barName, duration string, end time.Time, useRTH bool) (int64, error) {
	sess, err := a.sessionOrErr()
	if err != nil {
		return 0, err
	}
	if _, ok := protocol.BarSize(barName); !ok {
		return 0, errs.New(errs.KindInvalid, errs.WithMessage("unknown bar size "+strconv.Quote(barName)))
	}
	v := sess.Negotiated()
	key := correlation.Key{
		Kind:          correlation.KindHistory,
		Security:      sec.ID.String(),
		Discriminator: barName,
	}
	id := a.registry.Allocate(key)

	w := wire.NewWriter().Int(protocol.OutReqHistoricalData).Int(reqHistoryMsgVersion).Int(id)
	writeContract(w, v, &sec, 0)
	w.Bool(false) // exclude expired contracts
	w.Str(end.UTC().Format(historyEndLayout) + " GMT").
		Str(barName).
		Str(duration).
		Bool(useRTH).
		Str("TRADES").
		Int(2) // epoch-seconds date format
	if sec.Type == schema.SecurityCombo {
		w.Int(0)
	}

	if err := a.send(ctx, sess, protocol.OutReqHistoricalData, w); err != nil {
		a.registry.Drop(id)
		return 0, err
	}
	return id, nil
}

// CancelHistory stops a historical bar request before completion.
func (a *Adapter) CancelHistory(ctx context.Context, sec schema.Security, barName string) error {
	sess, err := a.sessionOrErr()
	if err != nil {
		return err
	}
	key := correlation.Key{
		Kind:          correlation.KindHistory,
		Security:      sec.ID.String(),
		Discriminator: barName,
	}
	id := a.registry.Release(key)
	w := wire.NewWriter().Int(protocol.OutCancelHistData).Int(cancelHistoryMsgVersion).Int(id)
	return a.send(ctx, sess, protocol.OutCancelHistData, w)
}

// RequestCurrentTime asks the terminal for its clock; the answer produces a
// TIME.OFFSET event against the local clock at receipt. The session owner
// already asks once at startup; this re-syncs on demand.
func (a *Adapter) RequestCurrentTime(ctx context.Context) error {
	sess, err := a.sessionOrErr()
	if err != nil {
		return err
	}
	return a.requestCurrentTime(ctx, sess)
}

func (a *Adapter) requestCurrentTime(ctx context.Context, sess *session.Session) error {
	w := wire.NewWriter().Int(protocol.OutReqCurrentTime).Int(reqCurrentTimeMsgVersion)
	return a.send(ctx, sess, protocol.OutReqCurrentTime, w)
}

// SubscribeAccount opens the account value and portfolio stream. An empty
// account selects the terminal's sole or default account.
func (a *Adapter) SubscribeAccount(ctx context.Context, account string) error {
	sess, err := a.sessionOrErr()
	if err != nil {
		return err
	}
	return a.subscribeAccount(ctx, sess, account)
}

// UnsubscribeAccount closes the account stream.
func (a *Adapter) UnsubscribeAccount(ctx context.Context, account string) error {
	sess, err := a.sessionOrErr()
	if err != nil {
		return err
	}
	w := wire.NewWriter().Int(protocol.OutReqAcctData).Int(reqAcctDataMsgVersion).Bool(false).Str(account)
	return a.send(ctx, sess, protocol.OutReqAcctData, w)
}

func (a *Adapter) subscribeAccount(ctx context.Context, sess *session.Session, account string) error {
	w := wire.NewWriter().Int(protocol.OutReqAcctData).Int(reqAcctDataMsgVersion).Bool(true).Str(account)
	return a.send(ctx, sess, protocol.OutReqAcctData, w)
}

func (a *Adapter) requestOpenOrders(ctx context.Context, sess *session.Session) error {
	w := wire.NewWriter().Int(protocol.OutReqOpenOrders).Int(reqOpenOrdersMsgVersion)
	return a.send(ctx, sess, protocol.OutReqOpenOrders, w)
}

func (a *Adapter) requestIDs(ctx context.Context, sess *session.Session) error {
	w := wire.NewWriter().Int(protocol.OutReqIDs).Int(reqIDsMsgVersion).Int(1)
	return a.send(ctx, sess, protocol.OutReqIDs, w)
}

func (a *Adapter) setServerLogLevel(ctx context.Context, sess *session.Session, level int64) error {
	w := wire.NewWriter().Int(protocol.OutSetServerLogLevel).Int(setLogLevelMsgVersion).Int(level)
	return a.send(ctx, sess, protocol.OutSetServerLogLevel, w)
}

func (a *Adapter) requestMarketDataType(ctx context.Context, sess *session.Session, mode int64) error {
	if !sess.Negotiated().Supports(protocol.VerMarketDataType) {
		return nil
	}
	w := wire.NewWriter().Int(protocol.OutReqMarketDataType).Int(reqMktDataTypeMsgVersion).Int(mode)
	return a.send(ctx, sess, protocol.OutReqMarketDataType, w)
}

func (a *Adapter) forgetSubscription(id int64) {
	a.mu.Lock()
	delete(a.subs, id)
	delete(a.books, id)
	a.mu.Unlock()
}
