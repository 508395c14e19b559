package domain

import (
	"fmt"
	"time"
)

type CallState string

const (
	CallPending   CallState = "pending"
	CallActive    CallState = "active"
	CallRejected  CallState = "rejected"
	CallTimeout   CallState = "timeout"
	CallEnded     CallState = "ended"
	CallCancelled CallState = "cancelled"
)

// Terminal reports whether no transition may leave s.
func (s CallState) Terminal() bool {
	switch s {
	case CallRejected, CallTimeout, CallEnded, CallCancelled:
		return true
	}
	return false
}

// CanTransition encodes the call state machine.
func (s CallState) CanTransition(to CallState) bool {
	switch s {
	case CallPending:
		return to == CallActive || to == CallRejected || to == CallTimeout
	case CallActive:
		return to == CallEnded || to == CallCancelled
	}
	return false
}

// ResetState is where an administrative reset or stale cleanup moves a live call.
func (s CallState) ResetState(forced bool) CallState {
	switch s {
	case CallPending:
		return CallTimeout
	case CallActive:
		if forced {
			return CallCancelled
		}
		return CallEnded
	}
	return s
}

type CallKind string

const (
	CallVideo CallKind = "video"
	CallAudio CallKind = "audio"
)

func ParseCallKind(s string) (CallKind, error) {
	switch CallKind(s) {
	case "":
		return CallVideo, nil
	case CallVideo, CallAudio:
		return CallKind(s), nil
	}
	return "", fmt.Errorf("%w: call type %q", ErrBadPayload, s)
}

type Decision string

const (
	DecisionAccept Decision = "accept"
	DecisionReject Decision = "reject"
)

func ParseDecision(s string) (Decision, error) {
	switch s {
	case "accept", "accepted":
		return DecisionAccept, nil
	case "reject", "rejected":
		return DecisionReject, nil
	}
	return "", fmt.Errorf("%w: decision %q", ErrBadPayload, s)
}

// CallSession is the lifecycle record of one call, independent of the transports used.
type CallSession struct {
	CallID     CallID    `json:"callId"`
	RoomID     RoomID    `json:"roomId"`
	Caller     Identity  `json:"caller"`
	Receiver   Identity  `json:"receiver"`
	Kind       CallKind  `json:"callType"`
	State      CallState `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
	AcceptedAt time.Time `json:"acceptedAt,omitzero"`
	EndedAt    time.Time `json:"endedAt,omitzero"`
}

func (c CallSession) Involves(id UserID) bool {
	return c.Caller.ID == id || c.Receiver.ID == id
}

// Peer returns the other party of the call as seen by id.
func (c CallSession) Peer(id UserID) Identity {
	if c.Caller.ID == id {
		return c.Receiver
	}
	return c.Caller
}

// Duration is zero until the call has been accepted and ended.
func (c CallSession) Duration() time.Duration {
	if c.AcceptedAt.IsZero() || c.EndedAt.IsZero() {
		return 0
	}
	return c.EndedAt.Sub(c.AcceptedAt)
}

// CallHistoryRecord is the audit trail of a call, keyed by room.
type CallHistoryRecord struct {
	RoomID    RoomID        `json:"roomId"`
	CallID    CallID        `json:"callId"`
	Caller    UserID        `json:"callerId"`
	Receiver  UserID        `json:"receiverId"`
	Status    CallState     `json:"status"`
	StartTime time.Time     `json:"startTime"`
	EndTime   time.Time     `json:"endTime,omitzero"`
	Duration  time.Duration `json:"-"`
}

// HistoryOf derives the audit row for the current state of c.
func HistoryOf(c CallSession) CallHistoryRecord {
	rec := CallHistoryRecord{
		RoomID:   c.RoomID,
		CallID:   c.CallID,
		Caller:   c.Caller.ID,
		Receiver: c.Receiver.ID,
		Status:   c.State,
	}
	switch {
	case !c.AcceptedAt.IsZero():
		rec.StartTime = c.AcceptedAt
	case !c.EndedAt.IsZero():
		rec.StartTime = c.EndedAt
	default:
		rec.StartTime = c.CreatedAt
	}
	if c.State.Terminal() {
		rec.EndTime = c.EndedAt
		rec.Duration = c.Duration()
	}
	return rec
}

// Direction is "outgoing" when id placed the call.
func (h CallHistoryRecord) Direction(id UserID) string {
	if h.Caller == id {
		return "outgoing"
	}
	return "incoming"
}
