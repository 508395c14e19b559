package signal

import (
	"errors"

	"github.com/dkeye/Voice/internal/app"
	"github.com/dkeye/Voice/internal/domain"
)

// handleRelay forwards offer/answer/ice-candidate. A vanished target is not an error for the
// sender: the peer will renegotiate once it reconnects.
func (ctl *SignalWSController) handleRelay(cl *client, m signalMsg) {
	from := app.Sender{Identity: cl.who.ID, TransportID: cl.tid}
	err := ctl.Orch.Signal(from, m.Kind, domain.TransportID(m.TargetTransportID), domain.RoomID(m.RoomID), m.Payload)
	if err == nil || errors.Is(err, domain.ErrTransportGone) {
		return
	}
	ctl.sendError(cl, app.EvError, err)
}
