package app

import (
	"encoding/json"
	"time"

	"github.com/dkeye/Voice/internal/domain"
)

const (
	EvIncomingCall    = "incoming-call"
	EvCallAccepted    = "call-accepted"
	EvCallRejected    = "call-rejected"
	EvCallTimeout     = "call-timeout"
	EvCallEnded       = "call-ended"
	EvCallCancelled   = "call-cancelled"
	EvMemberJoined    = "member-joined"
	EvMemberLeft      = "member-left"
	EvRoomUsers       = "room-users"
	EvSessionReplaced = "session-replaced"
	EvCallError       = "call-error"
	EvRoomError       = "room-error"
	EvError           = "error"
)

type IncomingCall struct {
	Type      string          `json:"type"`
	CallID    domain.CallID   `json:"callId"`
	RoomID    domain.RoomID   `json:"roomId"`
	Caller    domain.Identity `json:"caller"`
	CallType  domain.CallKind `json:"callType"`
	Timestamp time.Time       `json:"timestamp"`
}

func (e IncomingCall) EventType() string { return e.Type }

func NewIncomingCall(c domain.CallSession) IncomingCall {
	return IncomingCall{
		Type:      EvIncomingCall,
		CallID:    c.CallID,
		RoomID:    c.RoomID,
		Caller:    c.Caller,
		CallType:  c.Kind,
		Timestamp: c.CreatedAt.UTC(),
	}
}

type CallAccepted struct {
	Type     string          `json:"type"`
	RoomID   domain.RoomID   `json:"roomId"`
	CallID   domain.CallID   `json:"callId"`
	Receiver domain.Identity `json:"receiver"`
}

func (e CallAccepted) EventType() string { return e.Type }

// CallClosed covers call-rejected, call-timeout, call-ended and call-cancelled.
type CallClosed struct {
	Type     string        `json:"type"`
	CallID   domain.CallID `json:"callId"`
	RoomID   domain.RoomID `json:"roomId,omitempty"`
	Duration int64         `json:"duration,omitempty"`
}

func (e CallClosed) EventType() string { return e.Type }

// closedEvent picks the wire event for a terminal call.
func closedEvent(c domain.CallSession) CallClosed {
	ev := CallClosed{CallID: c.CallID, RoomID: c.RoomID}
	switch c.State {
	case domain.CallRejected:
		ev.Type = EvCallRejected
		ev.RoomID = ""
	case domain.CallTimeout:
		ev.Type = EvCallTimeout
	case domain.CallCancelled:
		ev.Type = EvCallCancelled
	default:
		ev.Type = EvCallEnded
		ev.Duration = int64(c.Duration() / time.Second)
	}
	return ev
}

type MemberEvent struct {
	Kind        string             `json:"type"`
	IdentityID  domain.UserID      `json:"identityId"`
	RoomID      domain.RoomID      `json:"roomId"`
	DisplayName string             `json:"userName,omitempty"`
	TransportID domain.TransportID `json:"socketId,omitempty"`
}

func (e MemberEvent) EventType() string { return e.Kind }

func memberEvent(kind string, m domain.RoomMembership) MemberEvent {
	return MemberEvent{
		Kind:        kind,
		IdentityID:  m.IdentityID,
		RoomID:      m.RoomID,
		DisplayName: m.DisplayName,
		TransportID: m.TransportID,
	}
}

type RoomUsers struct {
	Type    string                  `json:"type"`
	RoomID  domain.RoomID           `json:"roomId"`
	Members []domain.RoomMembership `json:"members"`
}

func (e RoomUsers) EventType() string { return e.Type }

// SignalEvent carries an opaque offer/answer/ice-candidate payload to its target.
type SignalEvent struct {
	Type            string             `json:"type"`
	Payload         json.RawMessage    `json:"payload"`
	FromTransportID domain.TransportID `json:"fromTransportId"`
	FromIdentity    domain.UserID      `json:"fromIdentity"`
	RoomID          domain.RoomID      `json:"roomId,omitempty"`
}

func (e SignalEvent) EventType() string { return e.Type }

type SessionReplaced struct {
	Type string             `json:"type"`
	By   domain.TransportID `json:"by"`
}

func (e SessionReplaced) EventType() string { return e.Type }

// ErrorEvent is the structured error reported to the originating transport.
type ErrorEvent struct {
	Type   string        `json:"type"`
	Code   string        `json:"code"`
	Error  string        `json:"error"`
	CallID domain.CallID `json:"callId,omitempty"`
}

func (e ErrorEvent) EventType() string { return e.Type }

func NewErrorEvent(kind string, err error) ErrorEvent {
	return ErrorEvent{Type: kind, Code: domain.ErrorCode(err), Error: err.Error()}
}
