package app

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/dkeye/Voice/internal/core"
	"github.com/dkeye/Voice/internal/domain"
	"github.com/samber/lo"
)

// fakeConn records every frame handed to it.
type fakeConn struct {
	mu     sync.Mutex
	frames []core.Frame
	closed bool
}

func (c *fakeConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return core.ErrConnClosed
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) events() []map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return lo.Map(c.frames, func(f core.Frame, _ int) map[string]any {
		var m map[string]any
		_ = json.Unmarshal(f, &m)
		return m
	})
}

func (c *fakeConn) types() []string {
	return lo.Map(c.events(), func(m map[string]any, _ int) string {
		s, _ := m["type"].(string)
		return s
	})
}

func (c *fakeConn) last() map[string]any {
	ev := c.events()
	if len(ev) == 0 {
		return nil
	}
	return ev[len(ev)-1]
}

// memStore is an in-memory Store.
type memStore struct {
	mu       sync.Mutex
	calls    map[domain.CallID]domain.CallSession
	history  map[domain.RoomID]domain.CallHistoryRecord
	presence map[domain.UserID]domain.PresenceSnapshot
}

func newMemStore() *memStore {
	return &memStore{
		calls:    make(map[domain.CallID]domain.CallSession),
		history:  make(map[domain.RoomID]domain.CallHistoryRecord),
		presence: make(map[domain.UserID]domain.PresenceSnapshot),
	}
}

func (s *memStore) SaveCall(_ context.Context, c domain.CallSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[c.CallID] = c
	return nil
}

func (s *memStore) OpenCalls(context.Context) ([]domain.CallSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	open := lo.Filter(lo.Values(s.calls), func(c domain.CallSession, _ int) bool { return !c.State.Terminal() })
	sort.Slice(open, func(i, j int) bool { return open[i].CreatedAt.Before(open[j].CreatedAt) })
	return open, nil
}

func (s *memStore) SaveHistory(_ context.Context, h domain.CallHistoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history[h.RoomID] = h
	return nil
}

func (s *memStore) History(_ context.Context, id domain.UserID, limit, offset int) ([]domain.CallHistoryRecord, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := lo.Filter(lo.Values(s.history), func(h domain.CallHistoryRecord, _ int) bool {
		return h.Caller == id || h.Receiver == id
	})
	return lo.Subset(all, offset, uint(limit)), len(all), nil
}

func (s *memStore) SavePresence(_ context.Context, p domain.PresenceSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.presence[p.IdentityID] = p
	return nil
}

func (s *memStore) TouchPresence(_ context.Context, id domain.UserID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.presence[id]; ok {
		p.LastSeen = at
		s.presence[id] = p
	}
	return nil
}

func (s *memStore) Presence(_ context.Context, id domain.UserID) (domain.PresenceSnapshot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.presence[id]
	return p, ok, nil
}

func (s *memStore) MarkStaleOffline(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, p := range s.presence {
		if p.Status == domain.PresenceOnline && p.LastSeen.Before(before) {
			p.Status = domain.PresenceOffline
			p.TransportID = ""
			s.presence[id] = p
			n++
		}
	}
	return n, nil
}

func (s *memStore) call(id domain.CallID) (domain.CallSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.calls[id]
	return c, ok
}

func (s *memStore) historyOf(room domain.RoomID) (domain.CallHistoryRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.history[room]
	return h, ok
}

func ident(id string, kind domain.IdentityKind) domain.Identity {
	return domain.Identity{ID: domain.UserID(id), DisplayName: id, Kind: kind}
}

// startPersister runs p until the test ends.
func startPersister(t interface{ Cleanup(func()) }, p *Persister) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = p.Run(ctx) }()
	t.Cleanup(cancel)
}
