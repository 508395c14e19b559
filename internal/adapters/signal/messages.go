package signal

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dkeye/Voice/internal/app"
	"github.com/dkeye/Voice/internal/domain"
	"github.com/go-playground/validator/v10"
)

// Inbound message types. Anything else is rejected with BAD_PAYLOAD.
const (
	msgRequestCall  = "request-call"
	msgRespond      = "respond-to-call"
	msgEndCall      = "end-call"
	msgJoinRoom     = "join-room"
	msgLeaveRoom    = "leave-room"
	msgPing         = "ping"
	msgWhoAmI       = "whoami"
	msgForceCleanup = "force-cleanup"
)

type inbound interface{ inbound() }

type requestCallMsg struct {
	ReceiverID string `json:"receiverId" validate:"required,max=128"`
	CallType   string `json:"callType" validate:"omitempty,oneof=video audio"`
}

type respondMsg struct {
	CallID   string `json:"callId" validate:"required"`
	Response string `json:"response" validate:"required,oneof=accept reject accepted rejected"`
}

type endCallMsg struct {
	RoomID string `json:"roomId" validate:"required"`
}

type joinRoomMsg struct {
	RoomID string `json:"roomId" validate:"required"`
}

type leaveRoomMsg struct {
	RoomID string `json:"roomId" validate:"required"`
}

// signalMsg is an offer, answer or ice-candidate. Payload is opaque and passed through untouched.
type signalMsg struct {
	Kind              app.SignalKind  `json:"-"`
	Payload           json.RawMessage `json:"payload" validate:"required"`
	TargetTransportID string          `json:"targetTransportId" validate:"required"`
	RoomID            string          `json:"roomId"`
}

type pingMsg struct {
	Timestamp json.RawMessage `json:"timestamp,omitempty"`
}

type whoamiMsg struct{}

type forceCleanupMsg struct {
	UserID string `json:"userId" validate:"omitempty,max=128"`
}

func (requestCallMsg) inbound()  {}
func (respondMsg) inbound()      {}
func (endCallMsg) inbound()      {}
func (joinRoomMsg) inbound()     {}
func (leaveRoomMsg) inbound()    {}
func (signalMsg) inbound()       {}
func (pingMsg) inbound()         {}
func (whoamiMsg) inbound()       {}
func (forceCleanupMsg) inbound() {}

// decode turns one frame into its typed variant and validates it.
func (ctl *SignalWSController) decode(data []byte) (inbound, error) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrBadPayload, err)
	}

	var msg inbound
	var err error
	switch env.Type {
	case msgRequestCall:
		msg, err = decodeAs[requestCallMsg](ctl.validate, data)
	case msgRespond:
		msg, err = decodeAs[respondMsg](ctl.validate, data)
	case msgEndCall:
		msg, err = decodeAs[endCallMsg](ctl.validate, data)
	case msgJoinRoom:
		msg, err = decodeAs[joinRoomMsg](ctl.validate, data)
	case msgLeaveRoom:
		msg, err = decodeAs[leaveRoomMsg](ctl.validate, data)
	case string(app.SignalOffer), string(app.SignalAnswer), string(app.SignalICECandidate):
		var m signalMsg
		m, err = decodeAs[signalMsg](ctl.validate, data)
		m.Kind = app.SignalKind(env.Type)
		msg = m
	case msgPing:
		msg, err = decodeAs[pingMsg](ctl.validate, data)
	case msgWhoAmI:
		msg = whoamiMsg{}
	case msgForceCleanup:
		msg, err = decodeAs[forceCleanupMsg](ctl.validate, data)
	default:
		return nil, fmt.Errorf("%w: unknown message type %q", domain.ErrBadPayload, env.Type)
	}
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func decodeAs[T inbound](v *validator.Validate, data []byte) (T, error) {
	var m T
	if err := json.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("%w: %v", domain.ErrBadPayload, err)
	}
	if err := v.Struct(m); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return m, fmt.Errorf("%w: %s failed %s", domain.ErrBadPayload, verrs[0].Field(), verrs[0].Tag())
		}
		return m, fmt.Errorf("%w: %v", domain.ErrBadPayload, err)
	}
	return m, nil
}
