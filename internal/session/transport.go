// Package session owns the physical connection to the broker terminal: the
// dial and version handshake, the single background read loop, the
// serialized write path and the shared-session ownership rules.
package session

import (
	"context"
	"net"
	"sync"

	"golang.org/x/time/rate"

	"github.com/coachpo/ibgate/errs"
	"github.com/coachpo/ibgate/internal/wire"
)

// transport serializes whole outbound messages onto one byte stream.
//
// Writes may arrive from arbitrary caller goroutines; the mutex is held for
// the duration of one full message so two requests can never interleave
// fields on the wire, which the terminal would read as a corrupt message.
type transport struct {
	conn    net.Conn
	reader  *wire.Reader
	writeMu sync.Mutex
	limiter *rate.Limiter
}

func newTransport(conn net.Conn, outboundRate float64) *transport {
	burst := int(outboundRate)
	if burst < 1 {
		burst = 1
	}
	return &transport{
		conn:    conn,
		reader:  wire.NewReader(conn),
		limiter: rate.NewLimiter(rate.Limit(outboundRate), burst),
	}
}

// send writes one assembled message. The terminal drops clients that flood
// it, so sends are paced through the limiter while the write lock is held.
func (t *transport) send(ctx context.Context, w *wire.Writer) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if err := t.limiter.Wait(ctx); err != nil {
		return err
	}
	if _, err := t.conn.Write(w.Bytes()); err != nil {
		return errs.Transport(err)
	}
	return nil
}

func (t *transport) close() error {
	return t.conn.Close()
}
