package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dkeye/Voice/internal/core"
	"github.com/dkeye/Voice/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	DefaultCallTimeout   = 45 * time.Second
	DefaultPresenceGrace = 30 * time.Second
)

type CallConfig struct {
	// Timeout is how long a call may ring before it times out. It is also the age after
	// which a leaked pending/active record is retired.
	Timeout time.Duration
	// PresenceGrace is how recent an "online" snapshot row must be to stand in for the registry.
	PresenceGrace time.Duration
	// Restricted enables the booking gate.
	Restricted bool
}

// PresenceSource is the persisted presence fallback.
type PresenceSource interface {
	Snapshot(ctx context.Context, id domain.UserID) (domain.PresenceSnapshot, bool, error)
}

// callRecord is one arena slot: the session plus the timer armed for it.
type callRecord struct {
	session domain.CallSession
	timer   *time.Timer
}

// CallManager owns the call state machine. Every transition happens under mu and re-checks
// the current state, so a timer racing a response can never apply a second terminal state.
type CallManager struct {
	mu     sync.Mutex
	calls  map[domain.CallID]*callRecord
	byRoom map[domain.RoomID]domain.CallID
	byUser map[domain.UserID]domain.CallID

	registry *Registry
	presence PresenceSource
	gate     core.BookingGate
	notifier core.Notifier
	limiter  *RateLimiter
	persist  *Persister
	store    Store

	cfg        CallConfig
	now        func() time.Time
	onTerminal func(domain.CallSession)
}

type CallDeps struct {
	Registry *Registry
	Presence PresenceSource
	Gate     core.BookingGate
	Notifier core.Notifier
	Limiter  *RateLimiter
	Persist  *Persister
	Store    Store
}

func NewCallManager(deps CallDeps, cfg CallConfig) *CallManager {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultCallTimeout
	}
	if cfg.PresenceGrace <= 0 {
		cfg.PresenceGrace = DefaultPresenceGrace
	}
	if deps.Gate == nil {
		deps.Gate = OpenGate{}
	}
	return &CallManager{
		calls:    make(map[domain.CallID]*callRecord),
		byRoom:   make(map[domain.RoomID]domain.CallID),
		byUser:   make(map[domain.UserID]domain.CallID),
		registry: deps.Registry,
		presence: deps.Presence,
		gate:     deps.Gate,
		notifier: deps.Notifier,
		limiter:  deps.Limiter,
		persist:  deps.Persist,
		store:    deps.Store,
		cfg:      cfg,
		now:      time.Now,
	}
}

// OnTerminal registers a hook run after every terminal transition, outside the lock.
func (m *CallManager) OnTerminal(fn func(domain.CallSession)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onTerminal = fn
}

// RequestCall admits a call from caller to receiver and rings the receiver.
func (m *CallManager) RequestCall(ctx context.Context, caller domain.Identity, receiver domain.UserID, kind domain.CallKind) (domain.CallSession, error) {
	if caller.ID == receiver {
		return domain.CallSession{}, domain.ErrSelfCall
	}
	if receiver == "" {
		return domain.CallSession{}, fmt.Errorf("%w: receiver is required", domain.ErrBadPayload)
	}
	if !m.limiter.Allow(caller.ID) {
		return domain.CallSession{}, domain.ErrRateLimited
	}

	m.mu.Lock()
	retired := m.retireStaleLocked(caller.ID, receiver)
	err := m.busyLocked(caller.ID, receiver)
	m.mu.Unlock()
	m.finishAll(ctx, retired, "")
	if err != nil {
		return domain.CallSession{}, err
	}

	if m.cfg.Restricted {
		ok, err := m.gate.IsBookingWindowValid(ctx, caller.ID, receiver)
		if err != nil {
			return domain.CallSession{}, fmt.Errorf("booking gate: %w", err)
		}
		if !ok {
			return domain.CallSession{}, domain.ErrNotPermitted
		}
	}

	if !m.reachable(ctx, receiver) {
		log.Info().Str("module", "app.calls").Str("caller", string(caller.ID)).Str("receiver", string(receiver)).Msg("receiver offline")
		return domain.CallSession{}, domain.ErrTargetUnreachable
	}

	recv := domain.Identity{ID: receiver}
	if sess, ok := m.registry.Lookup(receiver); ok {
		recv = sess.Identity
	}

	now := m.now()
	call := domain.CallSession{
		CallID:    domain.CallID(uuid.NewString()),
		RoomID:    newRoomID(now, caller.ID, receiver),
		Caller:    caller,
		Receiver:  recv,
		Kind:      kind,
		State:     domain.CallPending,
		CreatedAt: now,
	}

	m.mu.Lock()
	// Another request may have been admitted while the lock was released.
	if err := m.busyLocked(caller.ID, receiver); err != nil {
		m.mu.Unlock()
		return domain.CallSession{}, err
	}
	m.insertLocked(call, m.cfg.Timeout)
	m.mu.Unlock()

	m.save(call, false)
	log.Info().Str("module", "app.calls").Str("call", string(call.CallID)).Str("room", string(call.RoomID)).
		Str("caller", string(caller.ID)).Str("receiver", string(receiver)).Msg("call requested")
	notify(ctx, m.notifier, receiver, NewIncomingCall(call))
	return call, nil
}

// Respond applies the receiver's decision to a pending call addressed to them.
func (m *CallManager) Respond(ctx context.Context, callID domain.CallID, by domain.Identity, decision domain.Decision) (domain.CallSession, error) {
	m.mu.Lock()
	rec, ok := m.calls[callID]
	if !ok || rec.session.State != domain.CallPending || rec.session.Receiver.ID != by.ID {
		m.mu.Unlock()
		log.Debug().Str("module", "app.calls").Str("call", string(callID)).Str("by", string(by.ID)).Msg("respond: no pending call")
		return domain.CallSession{}, domain.ErrNotFound
	}

	switch decision {
	case domain.DecisionAccept:
		stopTimer(rec)
		rec.session.State = domain.CallActive
		rec.session.AcceptedAt = m.now()
		if rec.session.Receiver.DisplayName == "" {
			rec.session.Receiver = by
		}
		call := rec.session
		m.mu.Unlock()

		m.save(call, true)
		log.Info().Str("module", "app.calls").Str("call", string(call.CallID)).Msg("call accepted")
		notify(ctx, m.notifier, call.Caller.ID, CallAccepted{
			Type:     EvCallAccepted,
			RoomID:   call.RoomID,
			CallID:   call.CallID,
			Receiver: by,
		})
		return call, nil

	case domain.DecisionReject:
		call := m.finishLocked(rec, domain.CallRejected)
		m.mu.Unlock()
		m.afterTerminal(ctx, call, by.ID)
		return call, nil
	}
	m.mu.Unlock()
	return domain.CallSession{}, fmt.Errorf("%w: decision %q", domain.ErrBadPayload, decision)
}

// End hangs up the active call of roomID on behalf of one of its parties.
func (m *CallManager) End(ctx context.Context, roomID domain.RoomID, by domain.UserID) (domain.CallSession, error) {
	m.mu.Lock()
	id, ok := m.byRoom[roomID]
	rec := m.calls[id]
	if !ok || rec == nil || !rec.session.Involves(by) {
		m.mu.Unlock()
		return domain.CallSession{}, domain.ErrNotFound
	}
	if rec.session.State != domain.CallActive {
		state := rec.session.State
		m.mu.Unlock()
		log.Debug().Str("module", "app.calls").Str("room", string(roomID)).Str("state", string(state)).Msg("end: call not active")
		return domain.CallSession{}, domain.ErrInvalidTransition
	}
	call := m.finishLocked(rec, domain.CallEnded)
	m.mu.Unlock()

	m.afterTerminal(ctx, call, by)
	return call, nil
}

// timeoutSweep is fired by the timer armed for callID. It is a no-op unless the call
// is still pending.
func (m *CallManager) timeoutSweep(callID domain.CallID) {
	m.mu.Lock()
	rec, ok := m.calls[callID]
	if !ok || rec.session.State != domain.CallPending {
		m.mu.Unlock()
		log.Debug().Str("module", "app.calls").Str("call", string(callID)).Msg("timeout fired after resolution, ignored")
		return
	}
	call := m.finishLocked(rec, domain.CallTimeout)
	m.mu.Unlock()

	log.Info().Str("module", "app.calls").Str("call", string(callID)).Msg("call timed out")
	m.afterTerminal(context.Background(), call, "")
}

// ForceCleanup moves every live call involving id to its terminal counterpart.
func (m *CallManager) ForceCleanup(ctx context.Context, id domain.UserID) int {
	m.mu.Lock()
	var done []domain.CallSession
	for _, rec := range m.calls {
		if rec.session.Involves(id) {
			done = append(done, m.finishLocked(rec, rec.session.State.ResetState(true)))
		}
	}
	m.mu.Unlock()

	m.finishAll(ctx, done, id)
	log.Info().Str("module", "app.calls").Str("user", string(id)).Int("cleaned", len(done)).Msg("force cleanup")
	return len(done)
}

// Recover loads calls left open by a previous process. Pending ones get a timer for their
// remaining ring time; the stale rule retires the rest when they block a new request.
func (m *CallManager) Recover(ctx context.Context) (int, error) {
	open, err := m.store.OpenCalls(ctx)
	if err != nil {
		return 0, fmt.Errorf("load open calls: %w", err)
	}
	now := m.now()
	var retired []domain.CallSession
	loaded := 0

	m.mu.Lock()
	for _, c := range open {
		if _, ok := m.calls[c.CallID]; ok {
			continue
		}
		if m.busyLocked(c.Caller.ID, c.Receiver.ID) != nil {
			c.State = c.State.ResetState(false)
			c.EndedAt = now
			retired = append(retired, c)
			continue
		}
		remaining := m.cfg.Timeout - now.Sub(c.CreatedAt)
		if remaining < 0 {
			remaining = 0
		}
		m.insertLocked(c, remaining)
		loaded++
	}
	m.mu.Unlock()

	for _, c := range retired {
		m.save(c, true)
	}
	log.Info().Str("module", "app.calls").Int("loaded", loaded).Int("retired", len(retired)).Msg("recovered open calls")
	return loaded, nil
}

// Active returns the live call involving id.
func (m *CallManager) Active(id domain.UserID) (domain.CallSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cid, ok := m.byUser[id]
	if !ok {
		return domain.CallSession{}, false
	}
	return m.calls[cid].session, true
}

// Get returns a live call by id. Terminal calls leave the arena.
func (m *CallManager) Get(id domain.CallID) (domain.CallSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.calls[id]
	if !ok {
		return domain.CallSession{}, false
	}
	return rec.session, true
}

// InRoom returns the live call of roomID if id is one of its parties.
func (m *CallManager) InRoom(roomID domain.RoomID, id domain.UserID) (domain.CallSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cid, ok := m.byRoom[roomID]
	if !ok {
		return domain.CallSession{}, false
	}
	rec := m.calls[cid]
	if !rec.session.Involves(id) {
		return domain.CallSession{}, false
	}
	return rec.session, true
}

// PendingFor lists calls ringing for id.
func (m *CallManager) PendingFor(id domain.UserID) []domain.CallSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	cid, ok := m.byUser[id]
	if !ok {
		return nil
	}
	s := m.calls[cid].session
	if s.State != domain.CallPending || s.Receiver.ID != id {
		return nil
	}
	return []domain.CallSession{s}
}

// CanCall reports whether neither party holds a live call.
func (m *CallManager) CanCall(caller, receiver domain.UserID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.busyLocked(caller, receiver) == nil
}

func (m *CallManager) insertLocked(c domain.CallSession, ring time.Duration) {
	rec := &callRecord{session: c}
	if c.State == domain.CallPending {
		id := c.CallID
		rec.timer = time.AfterFunc(ring, func() { m.timeoutSweep(id) })
	}
	m.calls[c.CallID] = rec
	m.byRoom[c.RoomID] = c.CallID
	m.byUser[c.Caller.ID] = c.CallID
	m.byUser[c.Receiver.ID] = c.CallID
}

func (m *CallManager) busyLocked(ids ...domain.UserID) error {
	for _, id := range ids {
		if _, ok := m.byUser[id]; ok {
			return domain.ErrAlreadyInCall
		}
	}
	return nil
}

// retireStaleLocked terminates leaked records of the given parties so they never block forever.
func (m *CallManager) retireStaleLocked(ids ...domain.UserID) []domain.CallSession {
	now := m.now()
	var out []domain.CallSession
	for _, id := range ids {
		cid, ok := m.byUser[id]
		if !ok {
			continue
		}
		rec := m.calls[cid]
		if !m.staleLocked(rec.session, now) {
			continue
		}
		log.Warn().Str("module", "app.calls").Str("call", string(cid)).Str("state", string(rec.session.State)).Msg("retiring stale call")
		out = append(out, m.finishLocked(rec, rec.session.State.ResetState(false)))
	}
	return out
}

// staleLocked reports whether a live record outlived the timeout window since creation.
// Pending records retire as timeout, active ones as ended.
func (m *CallManager) staleLocked(c domain.CallSession, now time.Time) bool {
	if c.State.Terminal() {
		return true
	}
	return now.Sub(c.CreatedAt) >= m.cfg.Timeout
}

// finishLocked applies a terminal state, cancels the timer and frees the arena slot.
func (m *CallManager) finishLocked(rec *callRecord, to domain.CallState) domain.CallSession {
	if !rec.session.State.CanTransition(to) {
		log.Warn().Str("module", "app.calls").Str("call", string(rec.session.CallID)).
			Str("from", string(rec.session.State)).Str("to", string(to)).Msg(domain.ErrInvalidTransition.Error())
		return rec.session
	}
	stopTimer(rec)
	rec.session.State = to
	rec.session.EndedAt = m.now()
	c := rec.session
	delete(m.calls, c.CallID)
	delete(m.byRoom, c.RoomID)
	if m.byUser[c.Caller.ID] == c.CallID {
		delete(m.byUser, c.Caller.ID)
	}
	if m.byUser[c.Receiver.ID] == c.CallID {
		delete(m.byUser, c.Receiver.ID)
	}
	return c
}

func (m *CallManager) finishAll(ctx context.Context, calls []domain.CallSession, actor domain.UserID) {
	for _, c := range calls {
		m.afterTerminal(ctx, c, actor)
	}
}

// afterTerminal persists, tells the parties other than actor and runs the terminal hook.
func (m *CallManager) afterTerminal(ctx context.Context, c domain.CallSession, actor domain.UserID) {
	if !c.State.Terminal() {
		return
	}
	m.save(c, true)
	log.Info().Str("module", "app.calls").Str("call", string(c.CallID)).Str("state", string(c.State)).
		Dur("duration", c.Duration()).Msg("call closed")

	ev := closedEvent(c)
	for _, party := range []domain.UserID{c.Caller.ID, c.Receiver.ID} {
		if party == actor {
			continue
		}
		// Rejections and timeouts concern the caller; the receiver only hears about its own call ending.
		if party == c.Receiver.ID && c.State == domain.CallRejected {
			continue
		}
		notify(ctx, m.notifier, party, ev)
	}

	m.mu.Lock()
	hook := m.onTerminal
	m.mu.Unlock()
	if hook != nil {
		hook(c)
	}
}

func (m *CallManager) save(c domain.CallSession, history bool) {
	if m.persist == nil || m.store == nil {
		return
	}
	m.persist.Enqueue("calls.save", func(ctx context.Context) error {
		if err := m.store.SaveCall(ctx, c); err != nil {
			return err
		}
		if !history {
			return nil
		}
		return m.store.SaveHistory(ctx, domain.HistoryOf(c))
	})
}

func (m *CallManager) reachable(ctx context.Context, id domain.UserID) bool {
	if m.registry.IsOnline(id) {
		return true
	}
	if m.presence == nil {
		return false
	}
	snap, ok, err := m.presence.Snapshot(ctx, id)
	if err != nil {
		log.Warn().Err(err).Str("module", "app.calls").Str("user", string(id)).Msg("presence fallback unavailable")
		return false
	}
	if ok && snap.OnlineWithin(m.now(), m.cfg.PresenceGrace) {
		log.Info().Str("module", "app.calls").Str("user", string(id)).Time("last_seen", snap.LastSeen).Msg("presence snapshot override")
		return true
	}
	return false
}

func stopTimer(rec *callRecord) {
	if rec.timer != nil {
		rec.timer.Stop()
		rec.timer = nil
	}
}

func newRoomID(at time.Time, caller, receiver domain.UserID) domain.RoomID {
	return domain.RoomID(fmt.Sprintf("call_%d_%s_%s_%s", at.UnixMilli(), caller, receiver, uuid.NewString()[:8]))
}
