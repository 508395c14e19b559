package app

import (
	"sync"
	"time"

	"github.com/dkeye/Voice/internal/core"
	"github.com/dkeye/Voice/internal/domain"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

const DefaultLivenessWindow = 120 * time.Second

type sessionEntry struct {
	Session core.TransportSession
}

// Registry is the authoritative in-process map identity -> live transport session.
// Volatile: a restart loses every entry and clients must re-register.
type Registry struct {
	mu         sync.RWMutex
	sessions   map[domain.UserID]*sessionEntry
	transports map[domain.TransportID]domain.UserID

	window time.Duration
	now    func() time.Time
}

func NewRegistry(window time.Duration) *Registry {
	if window <= 0 {
		window = DefaultLivenessWindow
	}
	return &Registry{
		sessions:   make(map[domain.UserID]*sessionEntry),
		transports: make(map[domain.TransportID]domain.UserID),
		window:     window,
		now:        time.Now,
	}
}

// Superseded describes a session replaced by a newer Register for the same identity.
type Superseded struct {
	TransportID domain.TransportID
	Conn        core.SignalConnection
}

// Register replaces any prior session for the identity. The previous transport, if any,
// is returned so the caller may force-close it.
func (r *Registry) Register(who domain.Identity, tid domain.TransportID, conn core.SignalConnection) (Superseded, bool) {
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()

	var prev Superseded
	replaced := false
	if e, ok := r.sessions[who.ID]; ok && e.Session.TransportID != tid {
		prev = Superseded{TransportID: e.Session.TransportID, Conn: e.Session.Conn}
		replaced = true
		delete(r.transports, e.Session.TransportID)
	}
	r.sessions[who.ID] = &sessionEntry{Session: core.TransportSession{
		TransportID:  tid,
		Identity:     who,
		ConnectedAt:  now,
		LastLiveness: now,
		Conn:         conn,
	}}
	r.transports[tid] = who.ID

	ev := log.Info().Str("module", "app.registry").Str("user", string(who.ID)).Str("tid", string(tid))
	if replaced {
		ev = ev.Str("superseded", string(prev.TransportID))
	}
	ev.Msg("registered transport")
	return prev, replaced
}

// Touch refreshes the liveness timestamp. It reports false when the identity has no session.
func (r *Registry) Touch(id domain.UserID) bool {
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		return false
	}
	e.Session.LastLiveness = now
	return true
}

// Unregister removes the session only if tid is still the current transport, so a stale
// disconnect never clobbers a newer reconnect.
func (r *Registry) Unregister(id domain.UserID, tid domain.TransportID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok || e.Session.TransportID != tid {
		log.Debug().Str("module", "app.registry").Str("user", string(id)).Str("tid", string(tid)).Msg("stale unregister ignored")
		return false
	}
	delete(r.sessions, id)
	delete(r.transports, tid)
	log.Info().Str("module", "app.registry").Str("user", string(id)).Str("tid", string(tid)).Msg("unregistered transport")
	return true
}

func (r *Registry) live(s core.TransportSession, now time.Time) bool {
	return s.Open() && now.Sub(s.LastLiveness) <= r.window
}

// IsOnline is true iff a session exists, its transport is open and liveness is within the window.
func (r *Registry) IsOnline(id domain.UserID) bool {
	now := r.now()
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[id]
	return ok && r.live(e.Session, now)
}

// Lookup returns the current session of the identity. Absence is a normal state.
func (r *Registry) Lookup(id domain.UserID) (core.TransportSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.sessions[id]; ok {
		return e.Session, true
	}
	return core.TransportSession{}, false
}

// LookupTransport resolves a transport handle to its live session. Superseded and closed
// transports are absent.
func (r *Registry) LookupTransport(tid domain.TransportID) (core.TransportSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.transports[tid]
	if !ok {
		return core.TransportSession{}, false
	}
	e, ok := r.sessions[id]
	if !ok || !e.Session.Open() {
		return core.TransportSession{}, false
	}
	return e.Session, true
}

// Online lists the sessions currently considered online.
func (r *Registry) Online() []core.TransportSession {
	now := r.now()
	r.mu.RLock()
	defer r.mu.RUnlock()
	entries := lo.Filter(lo.Values(r.sessions), func(e *sessionEntry, _ int) bool {
		return r.live(e.Session, now)
	})
	return lo.Map(entries, func(e *sessionEntry, _ int) core.TransportSession { return e.Session })
}

// Expire drops every session whose liveness lapsed or whose transport closed, and returns them.
func (r *Registry) Expire() []core.TransportSession {
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []core.TransportSession
	for id, e := range r.sessions {
		if r.live(e.Session, now) {
			continue
		}
		delete(r.sessions, id)
		delete(r.transports, e.Session.TransportID)
		out = append(out, e.Session)
	}
	if len(out) > 0 {
		log.Info().Str("module", "app.registry").Int("expired", len(out)).Msg("cleaned stale transports")
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
