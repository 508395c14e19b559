package domain

import "time"

// RoomMembership is an identity's presence in a call room.
// No transport or lifecycle logic here.
type RoomMembership struct {
	RoomID      RoomID       `json:"roomId"`
	IdentityID  UserID       `json:"userId"`
	TransportID TransportID  `json:"socketId"`
	DisplayName string       `json:"userName"`
	Kind        IdentityKind `json:"userRole"`
	JoinedAt    time.Time    `json:"joinedAt"`
}

// NewMembership avoids raw literals in adapters and keeps construction obvious.
func NewMembership(room RoomID, who Identity, tid TransportID, at time.Time) RoomMembership {
	return RoomMembership{
		RoomID:      room,
		IdentityID:  who.ID,
		TransportID: tid,
		DisplayName: who.DisplayName,
		Kind:        who.Kind,
		JoinedAt:    at,
	}
}
