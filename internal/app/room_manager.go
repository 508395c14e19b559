package app

import (
	"sort"
	"sync"

	"github.com/dkeye/Voice/internal/core"
	"github.com/dkeye/Voice/internal/domain"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// TransportLookup resolves a transport handle to its live session.
type TransportLookup interface {
	LookupTransport(tid domain.TransportID) (core.TransportSession, bool)
}

type RoomInfo struct {
	ID          domain.RoomID `json:"roomId"`
	MemberCount int           `json:"memberCount"`
}

// RoomTracker holds ephemeral room membership. A room exists only while it has members.
type RoomTracker struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]map[domain.UserID]domain.RoomMembership

	transports TransportLookup
}

func NewRoomTracker(transports TransportLookup) *RoomTracker {
	return &RoomTracker{
		rooms:      make(map[domain.RoomID]map[domain.UserID]domain.RoomMembership),
		transports: transports,
	}
}

// Join adds m to its room, tells the existing members and returns them to the joiner.
// Joining again from another transport replaces the earlier membership.
func (t *RoomTracker) Join(m domain.RoomMembership) []domain.RoomMembership {
	t.mu.Lock()
	room, ok := t.rooms[m.RoomID]
	if !ok {
		room = make(map[domain.UserID]domain.RoomMembership)
		t.rooms[m.RoomID] = room
	}
	others := sortedMembers(lo.OmitByKeys(room, []domain.UserID{m.IdentityID}))
	room[m.IdentityID] = m
	t.mu.Unlock()

	log.Info().Str("module", "app.rooms").Str("room", string(m.RoomID)).Str("user", string(m.IdentityID)).
		Int("members", len(others)+1).Msg("member joined")
	t.broadcast(others, memberEvent(EvMemberJoined, m))
	return others
}

// Leave removes id from roomID and tells the remaining members. The room is deleted when empty.
func (t *RoomTracker) Leave(roomID domain.RoomID, id domain.UserID) bool {
	return t.leave(roomID, id, "")
}

// LeaveAll removes every membership held through tid, used when that transport goes away.
func (t *RoomTracker) LeaveAll(id domain.UserID, tid domain.TransportID) int {
	t.mu.RLock()
	var rooms []domain.RoomID
	for roomID, room := range t.rooms {
		if m, ok := room[id]; ok && m.TransportID == tid {
			rooms = append(rooms, roomID)
		}
	}
	t.mu.RUnlock()

	left := 0
	for _, roomID := range rooms {
		if t.leave(roomID, id, tid) {
			left++
		}
	}
	return left
}

func (t *RoomTracker) leave(roomID domain.RoomID, id domain.UserID, tid domain.TransportID) bool {
	t.mu.Lock()
	room, ok := t.rooms[roomID]
	if !ok {
		t.mu.Unlock()
		return false
	}
	m, ok := room[id]
	if !ok || (tid != "" && m.TransportID != tid) {
		t.mu.Unlock()
		return false
	}
	delete(room, id)
	if len(room) == 0 {
		delete(t.rooms, roomID)
	}
	remaining := sortedMembers(room)
	t.mu.Unlock()

	log.Info().Str("module", "app.rooms").Str("room", string(roomID)).Str("user", string(id)).Msg("member left")
	t.broadcast(remaining, memberEvent(EvMemberLeft, m))
	return true
}

// Evict drops a whole room, e.g. when its call reached a terminal state.
func (t *RoomTracker) Evict(roomID domain.RoomID) []domain.RoomMembership {
	t.mu.Lock()
	room, ok := t.rooms[roomID]
	delete(t.rooms, roomID)
	t.mu.Unlock()
	if !ok {
		return nil
	}
	log.Info().Str("module", "app.rooms").Str("room", string(roomID)).Int("members", len(room)).Msg("room evicted")
	return sortedMembers(room)
}

func (t *RoomTracker) Members(roomID domain.RoomID) []domain.RoomMembership {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return sortedMembers(t.rooms[roomID])
}

func (t *RoomTracker) List() []RoomInfo {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := lo.MapToSlice(t.rooms, func(id domain.RoomID, room map[domain.UserID]domain.RoomMembership) RoomInfo {
		return RoomInfo{ID: id, MemberCount: len(room)}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (t *RoomTracker) broadcast(to []domain.RoomMembership, ev core.Event) {
	if t.transports == nil {
		return
	}
	for _, m := range to {
		sess, ok := t.transports.LookupTransport(m.TransportID)
		if !ok {
			continue
		}
		if err := Deliver(sess.Conn, ev); err != nil {
			log.Debug().Err(err).Str("module", "app.rooms").Str("tid", string(m.TransportID)).Msg("room broadcast dropped")
		}
	}
}

func sortedMembers(room map[domain.UserID]domain.RoomMembership) []domain.RoomMembership {
	out := lo.Values(room)
	sort.Slice(out, func(i, j int) bool { return out[i].JoinedAt.Before(out[j].JoinedAt) })
	return out
}
