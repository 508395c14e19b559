package app

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dkeye/Voice/internal/core"
	"github.com/dkeye/Voice/internal/domain"
	"github.com/rs/zerolog/log"
)

// Deliver encodes ev and hands it to conn without blocking.
func Deliver(conn core.SignalConnection, ev core.Event) error {
	if conn == nil || conn.IsClosed() {
		return domain.ErrTransportGone
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode %s: %w", ev.EventType(), err)
	}
	return conn.TrySend(b)
}

// TransportNotifier delivers events to whichever transport the registry currently holds
// for an identity.
type TransportNotifier struct {
	Registry *Registry
}

func (n TransportNotifier) Notify(_ context.Context, to domain.UserID, ev core.Event) error {
	sess, ok := n.Registry.Lookup(to)
	if !ok || !sess.Open() {
		return domain.ErrTransportGone
	}
	return Deliver(sess.Conn, ev)
}

// notify is fire-and-forget: failures are logged and never surface to the state machine.
func notify(ctx context.Context, n core.Notifier, to domain.UserID, ev core.Event) {
	if n == nil {
		return
	}
	if err := n.Notify(ctx, to, ev); err != nil {
		log.Warn().Err(err).Str("module", "app.notify").Str("user", string(to)).Str("event", ev.EventType()).Msg("notify failed")
	}
}
