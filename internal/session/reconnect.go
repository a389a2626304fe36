package session

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/coachpo/ibgate/config"
	"github.com/coachpo/ibgate/internal/observability"
)

const maxReconnectInterval = 30 * time.Second

// Reconnector redials the terminal with exponential backoff whenever the
// shared session drops. Attach handlers and startup hooks once; they are
// replayed against each new session.
type Reconnector struct {
	hub     *Hub
	cfg     config.Settings
	role    config.Role
	handler Handler

	// OnSession runs after each successful acquire, before events flow.
	// Adapters use it to replay startup requests and subscriptions.
	OnSession func(ctx context.Context, lease *Lease) error
}

// NewReconnector wraps a hub for one adapter role.
func NewReconnector(hub *Hub, cfg config.Settings, role config.Role, handler Handler) *Reconnector {
	return &Reconnector{hub: hub, cfg: cfg, role: role, handler: handler}
}

// Run keeps the adapter attached until ctx is cancelled. Each session drop
// is reported through onClosed before the next dial attempt.
func (r *Reconnector) Run(ctx context.Context, onClosed func(error)) error {
	backoffCfg := backoff.NewExponentialBackOff()
	backoffCfg.MaxInterval = maxReconnectInterval

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		dropped := make(chan error, 1)
		lease, err := r.hub.Acquire(ctx, r.cfg, r.role, r.handler, func(cause error) {
			dropped <- cause
		})
		if err != nil {
			observability.Log().Error("session dial failed",
				observability.Str("role", string(r.role)),
				observability.Cause(err))
			if onClosed != nil {
				onClosed(err)
			}
			sleep := backoffCfg.NextBackOff()
			if sleep == backoff.Stop {
				sleep = maxReconnectInterval
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(sleep):
			}
			continue
		}

		if r.OnSession != nil {
			if err := r.OnSession(ctx, lease); err != nil {
				lease.Release()
				if onClosed != nil {
					onClosed(err)
				}
				continue
			}
		}
		backoffCfg = backoff.NewExponentialBackOff()
		backoffCfg.MaxInterval = maxReconnectInterval

		select {
		case <-ctx.Done():
			lease.Release()
			return ctx.Err()
		case cause := <-dropped:
			if onClosed != nil {
				onClosed(cause)
			}
			lease.Release()
		}
	}
}
