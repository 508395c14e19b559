package signal

import (
	"encoding/json"
	"time"

	"github.com/dkeye/Voice/internal/domain"
)

func (ctl *SignalWSController) handlePing(cl *client, m pingMsg) {
	ctl.Orch.Ping(cl.who.ID)
	resp := struct {
		Type       string          `json:"type"`
		Timestamp  json.RawMessage `json:"timestamp,omitempty"`
		ServerTime int64           `json:"serverTime"`
	}{
		Type:       "pong",
		Timestamp:  m.Timestamp,
		ServerTime: time.Now().UnixMilli(),
	}
	ctl.sendJSON(cl, resp)
}

func (ctl *SignalWSController) handleWhoAmI(cl *client) {
	resp := struct {
		Type        string              `json:"type"`
		Identity    domain.Identity     `json:"identity"`
		TransportID domain.TransportID  `json:"transportId"`
		ActiveCall  *domain.CallSession `json:"activeCall,omitempty"`
	}{
		Type:        "whoami",
		Identity:    cl.who,
		TransportID: cl.tid,
	}
	if call, ok := ctl.Orch.Calls.Active(cl.who.ID); ok {
		resp.ActiveCall = &call
	}
	ctl.sendJSON(cl, resp)
}
