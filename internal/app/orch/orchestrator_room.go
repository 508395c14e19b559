package orch

import (
	"encoding/json"
	"time"

	"github.com/dkeye/Voice/internal/app"
	"github.com/dkeye/Voice/internal/domain"
	"github.com/rs/zerolog/log"
)

// JoinRoom admits who into the room of a live call they take part in and returns the
// members already present.
func (o *Orchestrator) JoinRoom(who domain.Identity, tid domain.TransportID, roomID domain.RoomID) ([]domain.RoomMembership, error) {
	if _, ok := o.Calls.InRoom(roomID, who.ID); !ok {
		return nil, domain.ErrNotFound
	}
	others := o.Rooms.Join(domain.NewMembership(roomID, who, tid, time.Now()))
	// the call may have closed and its room been evicted between the check and the join
	if _, ok := o.Calls.InRoom(roomID, who.ID); !ok {
		o.EvictRoom(roomID)
		return nil, domain.ErrNotFound
	}
	return others, nil
}

func (o *Orchestrator) LeaveRoom(who domain.UserID, roomID domain.RoomID) error {
	if !o.Rooms.Leave(roomID, who) {
		return domain.ErrNotFound
	}
	return nil
}

// EvictRoom drops the room of a call that reached a terminal state.
func (o *Orchestrator) EvictRoom(roomID domain.RoomID) {
	members := o.Rooms.Evict(roomID)
	if len(members) > 0 {
		log.Info().Str("module", "orch").Str("room", string(roomID)).Int("members", len(members)).Msg("evicted room of closed call")
	}
}

// Signal relays an opaque offer/answer/ICE payload. Absent targets are dropped silently.
func (o *Orchestrator) Signal(from app.Sender, kind app.SignalKind, target domain.TransportID, roomID domain.RoomID, payload json.RawMessage) error {
	return o.Relay.Relay(from, kind, target, roomID, payload)
}
