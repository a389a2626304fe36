// Package ibgate adapts a legacy broker terminal wire protocol (NUL-delimited
// text fields over TCP, version negotiated per connection) into normalized
// trading events and requests.
//
// An Adapter serves one logical role, transaction or market data. Two
// adapters for the same terminal share one physical session through a Hub;
// every inbound message is parsed exactly once, on the session's read loop,
// by the adapter that owns its message code.
package ibgate

import (
	"context"
	"sync"
	"time"

	"github.com/coachpo/ibgate/config"
	"github.com/coachpo/ibgate/errs"
	"github.com/coachpo/ibgate/internal/book"
	"github.com/coachpo/ibgate/internal/correlation"
	"github.com/coachpo/ibgate/internal/observability"
	"github.com/coachpo/ibgate/internal/orders"
	"github.com/coachpo/ibgate/internal/protocol"
	"github.com/coachpo/ibgate/internal/schema"
	"github.com/coachpo/ibgate/internal/session"
	"github.com/coachpo/ibgate/internal/telemetry"
)

// Re-exported schema types forming the adapter's upstream/downstream
// contract.
type (
	Event        = schema.Event
	EventType    = schema.EventType
	Security     = schema.Security
	SecurityID   = schema.SecurityID
	OrderRequest = schema.OrderRequest
	Order        = schema.Order
	Trade        = schema.Trade
	Position     = schema.Position
	Conditions   = schema.Conditions
)

// Re-exported event and instrument vocabularies.
const (
	EventConnected    = schema.EventConnected
	EventDisconnected = schema.EventDisconnected
	EventSecurity     = schema.EventSecurity
	EventLevel1       = schema.EventLevel1
	EventBookSnapshot = schema.EventBookSnapshot
	EventOrderStatus  = schema.EventOrderStatus
	EventTrade        = schema.EventTrade
	EventPosition     = schema.EventPosition
	EventAccountValue = schema.EventAccountValue
	EventCandle       = schema.EventCandle
	EventTimeOffset   = schema.EventTimeOffset
	EventError        = schema.EventError

	SecurityStock  = schema.SecurityStock
	SecurityOption = schema.SecurityOption
	SecurityFuture = schema.SecurityFuture
	SecurityForex  = schema.SecurityForex
	SecurityCombo  = schema.SecurityCombo

	SideBuy  = schema.SideBuy
	SideSell = schema.SideSell
)

const defaultEventBuffer = 1024

// Hub shares one physical session between the two logical adapter roles.
// Construct one Hub per terminal endpoint and pass it to both adapters.
type Hub struct {
	inner *session.Hub
}

// NewHub returns a hub with no live session.
func NewHub() *Hub {
	return &Hub{inner: session.NewHub()}
}

// Adapter is the composition root for one logical role. It owns the
// correlation registry, the per-subscription order books, the order tracker
// and the execution store, and emits normalized events on Events().
type Adapter struct {
	cfg  config.Settings
	role config.Role
	hub  *Hub

	registry *correlation.Registry
	tracker  *orders.Tracker
	execs    *orders.ExecutionStore
	metrics  *telemetry.Instruments

	mu          sync.Mutex
	lease       *session.Lease
	books       map[int64]*book.Book
	subs        map[int64]schema.SecurityID
	securities  map[int64]schema.Security
	accounts    []string
	nextValidID int64

	events chan schema.Event
}

// New builds an adapter for one role. Both roles against the same terminal
// must share the hub, or the terminal sees two competing sessions.
func New(cfg config.Settings, role config.Role, hub *Hub) *Adapter {
	if hub == nil {
		hub = NewHub()
	}
	return &Adapter{
		cfg:        cfg,
		role:       role,
		hub:        hub,
		registry:   correlation.NewRegistry(1),
		tracker:    orders.NewTracker(),
		execs:      orders.NewExecutionStore(),
		metrics:    telemetry.NewInstruments(),
		books:      make(map[int64]*book.Book),
		subs:       make(map[int64]schema.SecurityID),
		securities: make(map[int64]schema.Security),
		events:     make(chan schema.Event, defaultEventBuffer),
	}
}

// Events returns the normalized event stream. The channel is never closed;
// a DISCONNECTED event is the terminal marker for one session. Events carry
// no backpressure signal, so consumers must drain promptly.
func (a *Adapter) Events() <-chan schema.Event { return a.events }

// Connect acquires the shared session (dialing and handshaking if this
// adapter is first), then issues this role's startup requests. A server
// version below the supported floor fails here, before any startup request
// reaches the wire.
func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	if a.lease != nil {
		a.mu.Unlock()
		return errs.New(errs.KindInvalid, errs.WithMessage("adapter already connected"))
	}
	a.mu.Unlock()

	lease, err := a.hub.inner.Acquire(ctx, a.cfg, a.role, a.handle, a.onSessionClosed)
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.lease = lease
	a.mu.Unlock()

	if err := a.startup(ctx, lease); err != nil {
		a.mu.Lock()
		a.lease = nil
		a.mu.Unlock()
		lease.Release()
		return err
	}

	sess := lease.Session()
	a.emit(schema.NewEvent(schema.EventConnected, schema.Connected{
		ServerVersion:     int64(sess.ServerVersion()),
		NegotiatedVersion: int64(sess.Negotiated()),
		ConnectionTime:    sess.ConnectionTime(),
	}))
	return nil
}

// startup issues the role's post-handshake requests. The session owner syncs
// the terminal clock once per session; the transaction role replays open
// orders, reserves the id space and subscribes to account and portfolio
// state; the market data role asks for nothing beyond the configured
// delivery mode.
func (a *Adapter) startup(ctx context.Context, lease *session.Lease) error {
	sess := lease.Session()

	if lease.Owner() {
		if a.cfg.ServerLogLevel > 0 {
			if err := a.setServerLogLevel(ctx, sess, a.cfg.ServerLogLevel); err != nil {
				return err
			}
		}
		if err := a.requestCurrentTime(ctx, sess); err != nil {
			return err
		}
	}

	switch a.role {
	case config.RoleTransaction:
		if err := a.requestIDs(ctx, sess); err != nil {
			return err
		}
		if err := a.requestOpenOrders(ctx, sess); err != nil {
			return err
		}
		if err := a.subscribeAccount(ctx, sess, ""); err != nil {
			return err
		}
	case config.RoleMarketData:
		if a.cfg.DelayedMarketData {
			if err := a.requestMarketDataType(ctx, sess, a.cfg.MarketDataType()); err != nil {
				return err
			}
		}
	}
	return nil
}

// Run keeps the adapter connected until ctx ends, redialing with
// exponential backoff whenever the session drops. Each successful dial
// replays the role's startup requests and emits a fresh CONNECTED event;
// each drop emits DISCONNECTED. Use either Connect or Run, not both.
func (a *Adapter) Run(ctx context.Context) error {
	rec := session.NewReconnector(a.hub.inner, a.cfg, a.role, a.handle)
	rec.OnSession = func(ctx context.Context, lease *session.Lease) error {
		a.mu.Lock()
		a.lease = lease
		a.mu.Unlock()
		if err := a.startup(ctx, lease); err != nil {
			a.mu.Lock()
			a.lease = nil
			a.mu.Unlock()
			return err
		}
		sess := lease.Session()
		a.emit(schema.NewEvent(schema.EventConnected, schema.Connected{
			ServerVersion:     int64(sess.ServerVersion()),
			NegotiatedVersion: int64(sess.Negotiated()),
			ConnectionTime:    sess.ConnectionTime(),
		}))
		return nil
	}
	return rec.Run(ctx, a.onSessionClosed)
}

// Close releases this adapter's hold on the shared session. The session
// owner's Close tears the connection down, which reports the orderly exit
// through the teardown path; the other role only detaches.
func (a *Adapter) Close() {
	a.mu.Lock()
	lease := a.lease
	a.lease = nil
	a.mu.Unlock()
	if lease == nil {
		return
	}
	lease.Release()
	if !lease.Owner() {
		// The session stays up for the owner, so no teardown reports this
		// exit; the detached adapter does it itself.
		a.emit(schema.NewEvent(schema.EventDisconnected, schema.Disconnected{}))
	}
}

// Negotiated reports the protocol version fixed at handshake, or zero when
// not connected.
func (a *Adapter) Negotiated() protocol.Version {
	sess := a.session()
	if sess == nil {
		return 0
	}
	return sess.Negotiated()
}

// Accounts lists the account codes the terminal reported as managed.
func (a *Adapter) Accounts() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.accounts))
	copy(out, a.accounts)
	return out
}

// Security returns the side-table description for a contract id, populated
// opportunistically from any message that carried one.
func (a *Adapter) Security(contractID int64) (schema.Security, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	sec, ok := a.securities[contractID]
	return sec, ok
}

// Order returns the tracked state of a submitted order.
func (a *Adapter) Order(txID int64) (schema.Order, bool) {
	return a.tracker.Get(txID)
}

// NextValidID reports the first order transaction id the terminal considers
// unused, learned from the id reservation at connect. Zero means the answer
// has not arrived yet.
func (a *Adapter) NextValidID() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.nextValidID
}

func (a *Adapter) session() *session.Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.lease == nil {
		return nil
	}
	return a.lease.Session()
}

func (a *Adapter) onSessionClosed(cause error) {
	a.mu.Lock()
	a.lease = nil
	a.books = make(map[int64]*book.Book)
	a.subs = make(map[int64]schema.SecurityID)
	a.mu.Unlock()
	// Subscriptions die with the session; their ids stay burned.
	a.registry.Reset()
	if cause != nil {
		observability.Log().Error("session lost",
			observability.Str("role", string(a.role)),
			observability.Cause(cause))
	}
	a.emit(schema.NewEvent(schema.EventDisconnected, schema.Disconnected{Cause: cause}))
}

func (a *Adapter) emit(ev schema.Event) {
	a.events <- ev
}

// rememberSecurity folds a contract description into the side table. Any
// message carrying one feeds it; population is additive and idempotent, so
// out-of-order arrival relative to dependent messages is harmless.
func (a *Adapter) rememberSecurity(sec schema.Security) {
	if sec.ID.ContractID == 0 {
		return
	}
	a.mu.Lock()
	existing, ok := a.securities[sec.ID.ContractID]
	if ok {
		if existing.LongName == "" {
			existing.LongName = sec.LongName
		}
		if existing.MarketName == "" {
			existing.MarketName = sec.MarketName
		}
		if existing.TradingCls == "" {
			existing.TradingCls = sec.TradingCls
		}
		a.securities[sec.ID.ContractID] = existing
	} else {
		a.securities[sec.ID.ContractID] = sec
	}
	a.mu.Unlock()
}

func (a *Adapter) subscribedSecurity(requestID int64) schema.SecurityID {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.subs[requestID]
}

var nowFn = time.Now
