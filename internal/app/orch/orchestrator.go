package orch

import (
	"context"
	"time"

	"github.com/dkeye/Voice/internal/app"
	"github.com/dkeye/Voice/internal/core"
	"github.com/dkeye/Voice/internal/domain"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Orchestrator composes the registry, call manager, rooms, relay and presence reconciler and
// owns their shared lifecycle. Transports talk to it only.
type Orchestrator struct {
	Registry *app.Registry
	Calls    *app.CallManager
	Rooms    *app.RoomTracker
	Relay    *app.SignalRelay
	Presence *app.PresenceReconciler
	Persist  *app.Persister
	Limiter  *app.RateLimiter

	// ExpireInterval is how often the registry drops transports whose liveness lapsed.
	ExpireInterval time.Duration
}

// Wire binds the cross-component hooks. Call it once before Run.
func (o *Orchestrator) Wire() {
	o.Calls.OnTerminal(func(c domain.CallSession) { o.EvictRoom(c.RoomID) })
}

// Run drives the background loops until ctx is done.
func (o *Orchestrator) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return o.Persist.Run(ctx) })
	g.Go(func() error { return o.Presence.Run(ctx) })
	g.Go(func() error { return o.expireLoop(ctx) })
	return g.Wait()
}

func (o *Orchestrator) expireLoop(ctx context.Context) error {
	interval := o.ExpireInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			o.ExpireStale()
			o.Limiter.Forget()
		}
	}
}

// ExpireStale drops transports whose liveness lapsed and cleans up after them.
func (o *Orchestrator) ExpireStale() int {
	expired := o.Registry.Expire()
	for _, s := range expired {
		if s.Conn != nil {
			s.Conn.Close()
		}
		o.Presence.OnUnregister(s.Identity)
		o.Rooms.LeaveAll(s.Identity.ID, s.TransportID)
	}
	return len(expired)
}

// OnConnect registers an authenticated transport. A previous transport of the same identity
// is told it was replaced and closed.
func (o *Orchestrator) OnConnect(ctx context.Context, who domain.Identity, tid domain.TransportID, conn core.SignalConnection) {
	prev, replaced := o.Registry.Register(who, tid, conn)
	if replaced {
		if prev.Conn != nil {
			_ = app.Deliver(prev.Conn, app.SessionReplaced{Type: app.EvSessionReplaced, By: tid})
			prev.Conn.Close()
		}
		o.Rooms.LeaveAll(who.ID, prev.TransportID)
		log.Info().Str("module", "orch").Str("user", string(who.ID)).Str("old_tid", string(prev.TransportID)).Msg("superseded transport closed")
	}
	if sess, ok := o.Registry.Lookup(who.ID); ok {
		o.Presence.OnRegister(sess)
	}
	for _, c := range o.Calls.PendingFor(who.ID) {
		_ = app.Deliver(conn, app.NewIncomingCall(c))
		log.Info().Str("module", "orch").Str("user", string(who.ID)).Str("call", string(c.CallID)).Msg("re-delivered ringing call")
	}
}

// OnDisconnect is called by the transport once its read loop exits.
func (o *Orchestrator) OnDisconnect(who domain.Identity, tid domain.TransportID) {
	if o.Registry.Unregister(who.ID, tid) {
		o.Presence.OnUnregister(who)
	}
	o.Rooms.LeaveAll(who.ID, tid)
}

// Ping refreshes liveness for who.
func (o *Orchestrator) Ping(who domain.UserID) bool {
	if !o.Registry.Touch(who) {
		return false
	}
	o.Presence.OnTouch(who)
	return true
}

// PresenceStatus combines the registry view with the persisted snapshot.
type PresenceStatus struct {
	UserID         domain.UserID            `json:"userId"`
	IsOnline       bool                     `json:"isOnline"`
	SocketOnline   bool                     `json:"socketOnline"`
	DBOnline       bool                     `json:"dbOnline"`
	Snapshot       *domain.PresenceSnapshot `json:"database"`
	Recommendation string                   `json:"recommendation"`
}

// Status reports both sources of truth for id. The snapshot is advisory only.
func (o *Orchestrator) Status(ctx context.Context, id domain.UserID, dbWindow time.Duration) (PresenceStatus, error) {
	st := PresenceStatus{UserID: id, SocketOnline: o.Registry.IsOnline(id)}
	snap, ok, err := o.Presence.Snapshot(ctx, id)
	if err != nil {
		return st, err
	}
	if ok {
		st.Snapshot = &snap
		st.DBOnline = snap.OnlineWithin(time.Now(), dbWindow)
	}
	st.IsOnline = st.SocketOnline || st.DBOnline
	switch {
	case st.DBOnline && !st.SocketOnline:
		st.Recommendation = "snapshot shows online but no live transport; the party may have just disconnected"
	case !st.DBOnline && st.SocketOnline:
		st.Recommendation = "live transport present, snapshot stale; normal during an active connection"
	case !st.IsOnline:
		st.Recommendation = "offline in both sources; cannot receive calls"
	default:
		st.Recommendation = "online and able to receive calls"
	}
	return st, nil
}
