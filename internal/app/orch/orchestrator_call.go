package orch

import (
	"context"

	"github.com/dkeye/Voice/internal/domain"
)

func (o *Orchestrator) RequestCall(ctx context.Context, caller domain.Identity, receiver domain.UserID, kind domain.CallKind) (domain.CallSession, error) {
	return o.Calls.RequestCall(ctx, caller, receiver, kind)
}

func (o *Orchestrator) Respond(ctx context.Context, callID domain.CallID, by domain.Identity, decision domain.Decision) (domain.CallSession, error) {
	return o.Calls.Respond(ctx, callID, by, decision)
}

func (o *Orchestrator) EndCall(ctx context.Context, roomID domain.RoomID, by domain.UserID) (domain.CallSession, error) {
	return o.Calls.End(ctx, roomID, by)
}

// ForceCleanup resets every live call of who. Parties may only reset their own calls.
func (o *Orchestrator) ForceCleanup(ctx context.Context, requester domain.Identity, target domain.UserID) (int, error) {
	if target == "" {
		target = requester.ID
	}
	if target != requester.ID && requester.Kind != domain.KindAdmin {
		return 0, domain.ErrForbidden
	}
	return o.Calls.ForceCleanup(ctx, target), nil
}
