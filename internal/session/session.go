package session

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/coachpo/ibgate/config"
	"github.com/coachpo/ibgate/errs"
	"github.com/coachpo/ibgate/internal/observability"
	"github.com/coachpo/ibgate/internal/protocol"
	"github.com/coachpo/ibgate/internal/wire"
)

// Handler parses one inbound wire message. The message type code has already
// been consumed; the handler must consume every remaining field of the
// message before returning, since the stream has no random access.
type Handler func(code int64, r *wire.Reader) error

// Lenient layouts for the connection-time string; older terminals omit the
// timezone suffix.
var connTimeLayouts = []string{
	"20060102 15:04:05 MST",
	"20060102 15:04:05",
}

// Session is one live, handshaken connection to the terminal. At most two
// logical adapters (transaction and market data) attach to it; every inbound
// message is parsed exactly once, on the read loop, by the handler of the
// role that owns the message code.
type Session struct {
	cfg           config.Settings
	transport     *transport
	serverVersion protocol.Version
	negotiated    protocol.Version
	connTime      time.Time

	mu       sync.Mutex
	handlers map[config.Role]Handler
	onClosed map[config.Role]func(error)

	wg      conc.WaitGroup
	started bool
	closed  atomic.Bool
}

// Dial connects to the terminal at cfg.Address and performs the version
// handshake. No retry happens here; retry policy belongs to the caller (see
// Reconnector).
func Dial(ctx context.Context, cfg config.Settings) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	d := net.Dialer{Timeout: cfg.ConnectTimeout}
	conn, err := d.DialContext(ctx, "tcp", cfg.Address)
	if err != nil {
		return nil, errs.New(errs.KindTransport,
			errs.WithMessage(fmt.Sprintf("dial terminal at %s", cfg.Address)),
			errs.WithCause(err))
	}
	return NewSession(ctx, conn, cfg)
}

// NewSession performs the version handshake over an established connection
// and returns a session ready for Start. The connection is closed on any
// handshake failure.
func NewSession(ctx context.Context, conn net.Conn, cfg config.Settings) (*Session, error) {
	s := &Session{
		cfg:       cfg,
		transport: newTransport(conn, cfg.OutboundRate),
		handlers:  make(map[config.Role]Handler),
		onClosed:  make(map[config.Role]func(error)),
	}
	if err := s.handshake(ctx); err != nil {
		_ = s.transport.close()
		return nil, err
	}
	return s, nil
}

// handshake exchanges versions and fixes the negotiated protocol version
// for the lifetime of the connection.
func (s *Session) handshake(ctx context.Context) error {
	if err := s.transport.send(ctx, wire.NewWriter().Int(int64(protocol.ClientVersion))); err != nil {
		return err
	}

	r := s.transport.reader
	server := protocol.Version(r.Int())
	if err := r.Err(); err != nil {
		return err
	}
	if server < protocol.MinServerVersion {
		return errs.New(errs.KindVersion, errs.WithMessage(fmt.Sprintf(
			"server version %d below minimum supported %d", server, protocol.MinServerVersion)))
	}
	s.serverVersion = server
	s.negotiated = protocol.Negotiate(server, protocol.ClientVersion)

	s.negotiated.Gate(protocol.VerConnectionTime, func() {
		s.connTime = parseConnTime(r.Str())
	})
	if err := r.Err(); err != nil {
		return err
	}

	var idErr error
	s.negotiated.Gate(protocol.VerClientID, func() {
		w := wire.NewWriter().Int(s.cfg.ClientID)
		// Newer dialects append an optional-capabilities slot to the
		// identifier message.
		s.negotiated.Gate(protocol.VerLinking, func() {
			w.Str("")
		})
		idErr = s.transport.send(ctx, w)
	})
	if idErr != nil {
		return idErr
	}

	observability.Log().Info("session handshake complete",
		observability.Int("server_version", int64(server)),
		observability.Int("negotiated", int64(s.negotiated)),
	)
	return nil
}

func parseConnTime(raw string) time.Time {
	for _, layout := range connTimeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}

// ServerVersion reports the version the terminal announced.
func (s *Session) ServerVersion() protocol.Version { return s.serverVersion }

// Negotiated reports the protocol version fixed at handshake; it never
// changes for the lifetime of the connection.
func (s *Session) Negotiated() protocol.Version { return s.negotiated }

// ConnectionTime reports the terminal's connection timestamp, when the
// negotiated version carries one.
func (s *Session) ConnectionTime() time.Time { return s.connTime }

// Attach registers a logical adapter's message handler. Each role attaches
// at most once.
func (s *Session) Attach(role config.Role, handler Handler, onClosed func(error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.handlers[role]; ok {
		return errs.New(errs.KindInvalid, errs.WithMessage(fmt.Sprintf("role %s already attached", role)))
	}
	s.handlers[role] = handler
	s.onClosed[role] = onClosed
	return nil
}

// Detach removes a logical adapter's handler.
func (s *Session) Detach(role config.Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.handlers, role)
	delete(s.onClosed, role)
}

// Start launches the background read loop. Every inbound message is parsed
// sequentially on that loop; there is no parallel parsing.
func (s *Session) Start() {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()
	s.wg.Go(s.readLoop)
}

func (s *Session) readLoop() {
	r := s.transport.reader
	for {
		code := r.Int()
		if err := r.Err(); err != nil {
			s.teardown(err)
			return
		}
		if code == protocol.InErrMsg {
			if err := s.fanOutError(r); err != nil {
				s.teardown(err)
				return
			}
			continue
		}
		handler := s.handlerFor(code)
		if handler == nil {
			s.teardown(errs.New(errs.KindParse,
				errs.WithMessage(fmt.Sprintf("no handler attached for message code %d", code))))
			return
		}
		if err := handler(code, r); err != nil {
			s.teardown(err)
			return
		}
		if err := r.Err(); err != nil {
			s.teardown(err)
			return
		}
	}
}

// transactionOwned lists the inbound codes that belong to order/account
// traffic when both logical adapters share the session.
func transactionOwned(code int64) bool {
	switch code {
	case protocol.InOrderStatus, protocol.InOpenOrder, protocol.InOpenOrderEnd,
		protocol.InAcctValue, protocol.InPortfolioValue, protocol.InAcctUpdateTime,
		protocol.InAcctDownloadEnd, protocol.InNextValidID, protocol.InExecutionData,
		protocol.InExecutionDataEnd, protocol.InCommissionReport, protocol.InManagedAccts:
		return true
	default:
		return false
	}
}

// fanOutError consumes one broker error message from the stream and replays
// it to every attached role. The message routes by request id alone, and the
// session cannot tell which role's id space an id belongs to, so each adapter
// sees the error and decides relevance itself. The stream is still read
// exactly once; handlers get a detached copy.
func (s *Session) fanOutError(r *wire.Reader) error {
	w := wire.NewWriter()
	version := r.Int()
	w.Int(version)
	if version < 2 {
		w.Str(r.Str())
	} else {
		w.Int(r.Int())
		w.Int(r.Int())
		w.Str(r.Str())
	}
	if err := r.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	handlers := make([]Handler, 0, len(s.handlers))
	for _, h := range s.handlers {
		handlers = append(handlers, h)
	}
	s.mu.Unlock()

	for _, h := range handlers {
		if err := h(protocol.InErrMsg, wire.NewReader(bytes.NewReader(w.Bytes()))); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) handlerFor(code int64) Handler {
	s.mu.Lock()
	defer s.mu.Unlock()
	primary, secondary := config.RoleMarketData, config.RoleTransaction
	if transactionOwned(code) {
		primary, secondary = secondary, primary
	}
	if h, ok := s.handlers[primary]; ok {
		return h
	}
	return s.handlers[secondary]
}

// Send writes one outbound message, serialized against all other writers.
func (s *Session) Send(ctx context.Context, w *wire.Writer) error {
	if s.closed.Load() {
		return errs.New(errs.KindTransport, errs.WithMessage("session closed"))
	}
	return s.transport.send(ctx, w)
}

func (s *Session) teardown(cause error) {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	_ = s.transport.close()

	s.mu.Lock()
	callbacks := make([]func(error), 0, len(s.onClosed))
	for _, cb := range s.onClosed {
		if cb != nil {
			callbacks = append(callbacks, cb)
		}
	}
	s.mu.Unlock()

	if cause != nil {
		observability.Log().Error("session torn down", observability.Cause(cause))
	}
	for _, cb := range callbacks {
		cb(cause)
	}
}

// Close tears the session down in an orderly fashion. Only the session
// owner calls this; attached non-owners must Detach instead.
func (s *Session) Close() {
	s.teardown(nil)
	s.wg.Wait()
}

// Closed reports whether the session has been torn down.
func (s *Session) Closed() bool {
	return s.closed.Load()
}
