package core

import "errors"

// Frame is a raw encoded payload (one JSON event).
type Frame []byte

var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
)

// SignalConnection abstracts for a system messaging transport
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
	IsClosed() bool
}

// Event is anything that can be delivered to a transport as one frame.
type Event interface {
	EventType() string
}
