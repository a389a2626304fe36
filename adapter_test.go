package ibgate

import (
	"bufio"
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/coachpo/ibgate/config"
	"github.com/coachpo/ibgate/errs"
	"github.com/coachpo/ibgate/internal/schema"
)

// fakeTerminal is a scripted broker terminal on a loopback listener. It
// answers the version handshake of each connection in turn, then pumps every
// inbound field into a channel for the test to assert on.
type fakeTerminal struct {
	t      *testing.T
	ln     net.Listener
	fields chan string

	mu   sync.Mutex
	conn net.Conn
}

func startFakeTerminal(t *testing.T, serverVersion string) *fakeTerminal {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ft := &fakeTerminal{
		t:      t,
		ln:     ln,
		fields: make(chan string, 256),
	}
	go ft.serve(serverVersion)
	t.Cleanup(func() {
		_ = ln.Close()
		if c := ft.currentConn(); c != nil {
			_ = c.Close()
		}
	})
	return ft
}

func (ft *fakeTerminal) serve(serverVersion string) {
	for {
		conn, err := ft.ln.Accept()
		if err != nil {
			return
		}
		ft.mu.Lock()
		ft.conn = conn
		ft.mu.Unlock()
		br := bufio.NewReader(conn)

		readField := func() (string, bool) {
			s, err := br.ReadString(0)
			if err != nil {
				return "", false
			}
			return s[:len(s)-1], true
		}

		if _, ok := readField(); !ok { // client version
			continue
		}
		_, _ = conn.Write(fieldBytes(serverVersion, "20240102 10:30:45 EST"))

		for {
			f, ok := readField()
			if !ok {
				break
			}
			ft.fields <- f
		}
	}
}

func (ft *fakeTerminal) address() string { return ft.ln.Addr().String() }

func (ft *fakeTerminal) currentConn() net.Conn {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	return ft.conn
}

func (ft *fakeTerminal) send(fields ...string) {
	ft.t.Helper()
	require.Eventually(ft.t, func() bool { return ft.currentConn() != nil },
		2*time.Second, 10*time.Millisecond, "no client connection to send on")
	_, err := ft.currentConn().Write(fieldBytes(fields...))
	require.NoError(ft.t, err)
}

func (ft *fakeTerminal) nextField() string {
	ft.t.Helper()
	select {
	case f := <-ft.fields:
		return f
	case <-time.After(2 * time.Second):
		ft.t.Fatalf("timed out awaiting a field from the client")
		return ""
	}
}

// expectMessage asserts the next inbound fields form exactly this message.
func (ft *fakeTerminal) expectMessage(want ...string) {
	ft.t.Helper()
	for i, w := range want {
		require.Equal(ft.t, w, ft.nextField(), "field %d of %v", i, want)
	}
}

func fieldBytes(fields ...string) []byte {
	buf := make([]byte, 0, 128)
	for _, f := range fields {
		buf = append(buf, f...)
		buf = append(buf, 0)
	}
	return buf
}

func terminalSettings(addr string) config.Settings {
	cfg := config.Default()
	cfg.Address = addr
	cfg.ClientID = 7
	return cfg
}

func waitEvent(t *testing.T, ch <-chan schema.Event, typ schema.EventType) schema.Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-ch:
			if ev.Type == typ {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out awaiting %s event", typ)
		}
	}
}

func testStock() schema.Security {
	return schema.Security{
		ID:       schema.SecurityID{ContractID: 42, Code: "ACME", Board: "NYSE"},
		Type:     schema.SecurityStock,
		Currency: "USD",
	}
}

func requireDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.True(t, got.Equal(decimal.RequireFromString(want)), "decimal = %s, want %s", got, want)
}

func TestMarketDataScenario(t *testing.T) {
	ft := startFakeTerminal(t, "62")
	md := New(terminalSettings(ft.address()), config.RoleMarketData, nil)
	require.NoError(t, md.Connect(context.Background()))
	defer md.Close()

	ev := waitEvent(t, md.Events(), schema.EventConnected)
	require.Equal(t, int64(62), ev.Payload.(schema.Connected).NegotiatedVersion)
	ft.expectMessage("7")       // client id
	ft.expectMessage("49", "1") // startup clock sync

	sec := testStock()
	id, err := md.SubscribeMarketData(context.Background(), sec)
	require.NoError(t, err)
	require.Equal(t, int64(1), id)
	// Request prefix: code, message version, request id, contract id.
	ft.expectMessage("1", "10", "1", "42", "ACME", "STK")

	// Bid price tick carrying its size; both named fields come out.
	ft.send("1", "6", "1", "1", "188.5", "3", "1")
	tick := waitEvent(t, md.Events(), schema.EventLevel1).Payload.(schema.Level1Update)
	require.Equal(t, schema.Level1BestBid, tick.Field)
	require.Equal(t, sec.ID, tick.Security)
	requireDecimal(t, "188.5", tick.Value)
	tick = waitEvent(t, md.Events(), schema.EventLevel1).Payload.(schema.Level1Update)
	require.Equal(t, schema.Level1BestBidVolume, tick.Field)
	requireDecimal(t, "3", tick.Value)

	// Depth subscription renders a full snapshot per delta.
	depthID, err := md.SubscribeMarketDepth(context.Background(), sec, 5)
	require.NoError(t, err)
	ft.send("12", "1", "2", "0", "0", "1", "10.5", "1")
	snap := waitEvent(t, md.Events(), schema.EventBookSnapshot).Payload.(schema.BookSnapshot)
	require.Equal(t, depthID, snap.RequestID)
	require.Len(t, snap.Bids, 1)
	requireDecimal(t, "10.5", snap.Bids[0].Price)

	// Broker errors keep the terminal's own code and text.
	ft.send("4", "2", "2", "2119", "Market data farm is connecting")
	brokerErr := waitEvent(t, md.Events(), schema.EventError).Payload.(*errs.E)
	require.Equal(t, int64(2119), brokerErr.Code)
	require.Equal(t, "Market data farm is connecting", brokerErr.RawMsg)
}

func TestTransactionScenario(t *testing.T) {
	ft := startFakeTerminal(t, "62")
	tx := New(terminalSettings(ft.address()), config.RoleTransaction, nil)
	require.NoError(t, tx.Connect(context.Background()))
	defer tx.Close()

	waitEvent(t, tx.Events(), schema.EventConnected)
	ft.expectMessage("7")               // client id
	ft.expectMessage("49", "1")         // startup clock sync
	ft.expectMessage("8", "1", "1")     // id reservation
	ft.expectMessage("5", "1")          // open order replay
	ft.expectMessage("6", "2", "1", "") // account subscription

	ft.send("9", "1", "90") // next valid id
	require.Eventually(t, func() bool { return tx.NextValidID() == 90 },
		2*time.Second, 10*time.Millisecond)

	ft.send("15", "1", "DU123,DU456")
	require.Eventually(t, func() bool { return len(tx.Accounts()) == 2 },
		2*time.Second, 10*time.Millisecond)

	price := decimal.RequireFromString("188.5")
	req := &schema.OrderRequest{
		TxID:     90,
		Security: testStock(),
		Side:     schema.SideBuy,
		Volume:   decimal.NewFromInt(3),
		Price:    &price,
		Type:     schema.OrderTypeLimit,
		TIF:      schema.TIFDay,
		Transmit: true,
	}
	require.NoError(t, tx.PlaceOrder(context.Background(), req))
	ft.expectMessage("3", "38", "90") // place order prefix

	ft.send("3", "6", "90", "Submitted", "0", "3", "0", "999", "0", "0", "0", "")
	ord := waitEvent(t, tx.Events(), schema.EventOrderStatus).Payload.(schema.Order)
	require.Equal(t, schema.OrderActive, ord.State)
	require.Equal(t, int64(999), ord.PermID)

	ft.send("11", "9", "1", "90", "42", "ACME", "STK", "", "0", "", "NYSE", "USD", "ACME",
		"X-1", "20240102-10:31:00", "DU123", "NYSE", "BOT", "3", "188.5",
		"999", "0", "0", "3", "188.5", "", "", "0")
	trade := waitEvent(t, tx.Events(), schema.EventTrade).Payload.(schema.Trade)
	require.Equal(t, "X-1", trade.ExecID)
	require.Equal(t, int64(90), trade.OrderTxID)
	require.False(t, trade.External)
	requireDecimal(t, "188.5", trade.Price)

	ft.send("59", "1", "X-1", "1.25", "USD", "0.5", "1.7976931348623157E308", "0")
	trade = waitEvent(t, tx.Events(), schema.EventTrade).Payload.(schema.Trade)
	require.NotNil(t, trade.Commission)
	requireDecimal(t, "1.25", *trade.Commission)

	ft.send("3", "6", "90", "Filled", "3", "0", "188.5", "999", "0", "188.5", "0", "")
	ord = waitEvent(t, tx.Events(), schema.EventOrderStatus).Payload.(schema.Order)
	require.Equal(t, schema.OrderDone, ord.State)

	// Terminal state absorbs later statuses; the next event through must be
	// the time offset, not another order status.
	ft.send("3", "6", "90", "Cancelled", "3", "0", "188.5", "999", "0", "188.5", "0", "")
	ft.send("49", "1", "1704191460")
	ev := waitEvent(t, tx.Events(), schema.EventTimeOffset)
	require.Equal(t, schema.EventTimeOffset, ev.Type)
	ord, ok := tx.Order(90)
	require.True(t, ok)
	require.Equal(t, schema.OrderDone, ord.State)
}

func TestRolesShareOneSession(t *testing.T) {
	ft := startFakeTerminal(t, "62")
	cfg := terminalSettings(ft.address())
	hub := NewHub()
	tx := New(cfg, config.RoleTransaction, hub)
	md := New(cfg, config.RoleMarketData, hub)

	require.NoError(t, tx.Connect(context.Background()))
	waitEvent(t, tx.Events(), schema.EventConnected)
	require.NoError(t, md.Connect(context.Background()))
	waitEvent(t, md.Events(), schema.EventConnected)
	require.Equal(t, tx.Negotiated(), md.Negotiated())

	// Order traffic routes to the transaction adapter even with both
	// attached.
	ft.send("3", "6", "11", "Submitted", "0", "1", "0", "0", "0", "0", "0", "")
	ord := waitEvent(t, tx.Events(), schema.EventOrderStatus).Payload.(schema.Order)
	require.Equal(t, int64(11), ord.TxID)
	select {
	case ev := <-md.Events():
		t.Fatalf("market data adapter received %s event for order traffic", ev.Type)
	case <-time.After(100 * time.Millisecond):
	}

	// The non-owner detaching leaves the owner's session usable.
	md.Close()
	waitEvent(t, md.Events(), schema.EventDisconnected)
	ft.send("49", "1", "1704191460")
	waitEvent(t, tx.Events(), schema.EventTimeOffset)

	tx.Close()
	ev := waitEvent(t, tx.Events(), schema.EventDisconnected)
	require.Nil(t, ev.Payload.(schema.Disconnected).Cause)
}

func TestOrderRejectReachesTransactionRole(t *testing.T) {
	ft := startFakeTerminal(t, "62")
	cfg := terminalSettings(ft.address())
	hub := NewHub()
	tx := New(cfg, config.RoleTransaction, hub)
	md := New(cfg, config.RoleMarketData, hub)

	require.NoError(t, tx.Connect(context.Background()))
	waitEvent(t, tx.Events(), schema.EventConnected)
	require.NoError(t, md.Connect(context.Background()))
	waitEvent(t, md.Events(), schema.EventConnected)

	price := decimal.RequireFromString("188.5")
	req := &schema.OrderRequest{
		TxID:     90,
		Security: testStock(),
		Side:     schema.SideBuy,
		Volume:   decimal.NewFromInt(3),
		Price:    &price,
		Type:     schema.OrderTypeLimit,
		TIF:      schema.TIFDay,
		Transmit: true,
	}
	require.NoError(t, tx.PlaceOrder(context.Background(), req))

	// A reject addresses the order's transaction id; it must fail the order
	// on the adapter that placed it even with both roles attached.
	ft.send("4", "2", "90", "201", "Order rejected - insufficient margin")
	ord := waitEvent(t, tx.Events(), schema.EventOrderStatus).Payload.(schema.Order)
	require.Equal(t, schema.OrderFailed, ord.State)
	brokerErr := waitEvent(t, tx.Events(), schema.EventError).Payload.(*errs.E)
	require.Equal(t, int64(201), brokerErr.Code)
	require.Equal(t, int64(90), brokerErr.RequestID)

	// Errors carry no role routing on the wire, so the other role sees the
	// message too and decides relevance itself.
	mdErr := waitEvent(t, md.Events(), schema.EventError).Payload.(*errs.E)
	require.Equal(t, int64(90), mdErr.RequestID)

	ord, ok := tx.Order(90)
	require.True(t, ok)
	require.Equal(t, schema.OrderFailed, ord.State)
}

func TestCloseThenReconnectResubscribes(t *testing.T) {
	ft := startFakeTerminal(t, "62")
	md := New(terminalSettings(ft.address()), config.RoleMarketData, nil)
	require.NoError(t, md.Connect(context.Background()))
	waitEvent(t, md.Events(), schema.EventConnected)

	sec := testStock()
	first, err := md.SubscribeMarketData(context.Background(), sec)
	require.NoError(t, err)

	// An orderly close is the session-terminal marker for the owner too.
	md.Close()
	ev := waitEvent(t, md.Events(), schema.EventDisconnected)
	require.Nil(t, ev.Payload.(schema.Disconnected).Cause)

	// A fresh session starts clean: the same instrument subscribes again,
	// under an id the dead session never used.
	require.NoError(t, md.Connect(context.Background()))
	waitEvent(t, md.Events(), schema.EventConnected)
	second, err := md.SubscribeMarketData(context.Background(), sec)
	require.NoError(t, err)
	require.Greater(t, second, first)
}

func TestPeerHangupEmitsDisconnected(t *testing.T) {
	ft := startFakeTerminal(t, "62")
	md := New(terminalSettings(ft.address()), config.RoleMarketData, nil)
	require.NoError(t, md.Connect(context.Background()))
	waitEvent(t, md.Events(), schema.EventConnected)

	require.NoError(t, ft.currentConn().Close())

	ev := waitEvent(t, md.Events(), schema.EventDisconnected)
	cause := ev.Payload.(schema.Disconnected).Cause
	require.Error(t, cause)
	var e *errs.E
	require.ErrorAs(t, cause, &e)
	require.Equal(t, errs.KindTransport, e.Kind)
}

func TestConnectRejectsAncientServer(t *testing.T) {
	ft := startFakeTerminal(t, "30")
	md := New(terminalSettings(ft.address()), config.RoleMarketData, nil)
	err := md.Connect(context.Background())
	var e *errs.E
	require.ErrorAs(t, err, &e)
	require.Equal(t, errs.KindVersion, e.Kind)
}
