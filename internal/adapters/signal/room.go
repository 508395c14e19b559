package signal

import (
	"github.com/dkeye/Voice/internal/app"
	"github.com/dkeye/Voice/internal/domain"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) handleJoin(cl *client, m joinRoomMsg) {
	roomID := domain.RoomID(m.RoomID)
	others, err := ctl.Orch.JoinRoom(cl.who, cl.tid, roomID)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("user", string(cl.who.ID)).Str("room", m.RoomID).Msg("join refused")
		ctl.sendError(cl, app.EvRoomError, err)
		return
	}
	log.Info().Str("module", "signal").Str("user", string(cl.who.ID)).Str("room", m.RoomID).Int("others", len(others)).Msg("join")
	if others == nil {
		others = []domain.RoomMembership{}
	}
	ctl.sendJSON(cl, app.RoomUsers{Type: app.EvRoomUsers, RoomID: roomID, Members: others})
}

// handleLeave leaves one room; the transport stays connected.
func (ctl *SignalWSController) handleLeave(cl *client, m leaveRoomMsg) {
	if err := ctl.Orch.LeaveRoom(cl.who.ID, domain.RoomID(m.RoomID)); err != nil {
		ctl.sendError(cl, app.EvRoomError, err)
		return
	}
	log.Info().Str("module", "signal").Str("user", string(cl.who.ID)).Str("room", m.RoomID).Msg("leave")
}
