package domain

type (
	RoomID      string
	CallID      string
	TransportID string
)
