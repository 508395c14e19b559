package signal

import (
	"context"

	"github.com/dkeye/Voice/internal/app"
	"github.com/dkeye/Voice/internal/domain"
	"github.com/rs/zerolog/log"
)

type callRequested struct {
	Type     string        `json:"type"`
	CallID   domain.CallID `json:"callId"`
	RoomID   domain.RoomID `json:"roomId"`
	Receiver domain.UserID `json:"receiverId"`
}

func (ctl *SignalWSController) handleRequestCall(ctx context.Context, cl *client, m requestCallMsg) {
	kind, err := domain.ParseCallKind(m.CallType)
	if err != nil {
		ctl.sendError(cl, app.EvCallError, err)
		return
	}
	call, err := ctl.Orch.RequestCall(ctx, cl.who, domain.UserID(m.ReceiverID), kind)
	if err != nil {
		log.Info().Err(err).Str("module", "signal").Str("user", string(cl.who.ID)).Str("receiver", m.ReceiverID).Msg("request-call refused")
		ctl.sendError(cl, app.EvCallError, err)
		return
	}
	ctl.sendJSON(cl, callRequested{
		Type:     "call-requested",
		CallID:   call.CallID,
		RoomID:   call.RoomID,
		Receiver: call.Receiver.ID,
	})
}

func (ctl *SignalWSController) handleRespond(ctx context.Context, cl *client, m respondMsg) {
	decision, err := domain.ParseDecision(m.Response)
	if err != nil {
		ctl.sendError(cl, app.EvCallError, err)
		return
	}
	call, err := ctl.Orch.Respond(ctx, domain.CallID(m.CallID), cl.who, decision)
	if err != nil {
		ev := app.NewErrorEvent(app.EvCallError, err)
		ev.CallID = domain.CallID(m.CallID)
		ctl.sendJSON(cl, ev)
		return
	}
	if call.State == domain.CallActive {
		// the receiver learns the room it should join
		ctl.sendJSON(cl, app.CallAccepted{
			Type:     app.EvCallAccepted,
			RoomID:   call.RoomID,
			CallID:   call.CallID,
			Receiver: cl.who,
		})
	}
}

func (ctl *SignalWSController) handleEndCall(ctx context.Context, cl *client, m endCallMsg) {
	if _, err := ctl.Orch.EndCall(ctx, domain.RoomID(m.RoomID), cl.who.ID); err != nil {
		ctl.sendError(cl, app.EvCallError, err)
	}
}

type cleanupDone struct {
	Type    string        `json:"type"`
	UserID  domain.UserID `json:"userId"`
	Cleaned int           `json:"cleaned"`
}

func (ctl *SignalWSController) handleForceCleanup(ctx context.Context, cl *client, m forceCleanupMsg) {
	target := domain.UserID(m.UserID)
	n, err := ctl.Orch.ForceCleanup(ctx, cl.who, target)
	if err != nil {
		ctl.sendError(cl, app.EvCallError, err)
		return
	}
	if target == "" {
		target = cl.who.ID
	}
	ctl.sendJSON(cl, cleanupDone{Type: "cleanup-done", UserID: target, Cleaned: n})
}
