package session

import (
	"context"
	"sync"

	"github.com/coachpo/ibgate/config"
)

// Hub shares one physical session between the transaction and market data
// adapters running against the same terminal instance.
//
// Whichever adapter acquires first (when no session exists) becomes the
// session owner and is responsible for teardown; the other attaches to the
// existing session and must not close it.
type Hub struct {
	dial func(ctx context.Context, cfg config.Settings) (*Session, error)

	mu   sync.Mutex
	sess *Session
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{dial: Dial}
}

// Lease is one adapter's handle on the shared session.
type Lease struct {
	hub   *Hub
	sess  *Session
	role  config.Role
	owner bool
}

// Session returns the shared session.
func (l *Lease) Session() *Session { return l.sess }

// Owner reports whether this lease owns teardown.
func (l *Lease) Owner() bool { return l.owner }

// Acquire attaches a logical adapter to the shared session, dialing a new
// one if none is alive. The first acquirer of a fresh session owns it.
func (h *Hub) Acquire(ctx context.Context, cfg config.Settings, role config.Role, handler Handler, onClosed func(error)) (*Lease, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	owner := false
	if h.sess == nil || h.sess.Closed() {
		sess, err := h.dial(ctx, cfg)
		if err != nil {
			return nil, err
		}
		h.sess = sess
		owner = true
	}
	if err := h.sess.Attach(role, handler, onClosed); err != nil {
		if owner {
			h.sess.Close()
			h.sess = nil
		}
		return nil, err
	}
	if owner {
		h.sess.Start()
	}
	return &Lease{hub: h, sess: h.sess, role: role, owner: owner}, nil
}

// Release detaches the adapter. The session owner instead tears the session
// down before detaching, so the teardown callbacks of every still-attached
// role fire, the owner's included; non-owners leave the session running for
// the other adapter.
func (l *Lease) Release() {
	if !l.owner {
		l.sess.Detach(l.role)
		return
	}
	l.hub.mu.Lock()
	if l.hub.sess == l.sess {
		l.hub.sess = nil
	}
	l.hub.mu.Unlock()
	l.sess.Close()
	l.sess.Detach(l.role)
}
