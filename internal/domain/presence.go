package domain

import "time"

type PresenceStatus string

const (
	PresenceOnline  PresenceStatus = "online"
	PresenceOffline PresenceStatus = "offline"
)

// PresenceSnapshot is the persisted, advisory mirror of a transport session.
// It is never authoritative for immediate deliverability.
type PresenceSnapshot struct {
	IdentityID  UserID         `json:"userId"`
	TransportID TransportID    `json:"socketId,omitempty"`
	Kind        IdentityKind   `json:"role"`
	Status      PresenceStatus `json:"status"`
	LastSeen    time.Time      `json:"lastSeen"`
}

// OnlineWithin reports whether the snapshot says online and was refreshed within window of now.
func (p PresenceSnapshot) OnlineWithin(now time.Time, window time.Duration) bool {
	return p.Status == PresenceOnline && now.Sub(p.LastSeen) < window
}
