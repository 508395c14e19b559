package core

import (
	"time"

	"github.com/dkeye/Voice/internal/domain"
)

// TransportSession is one live real-time connection bound to an identity.
type TransportSession struct {
	TransportID  domain.TransportID
	Identity     domain.Identity
	ConnectedAt  time.Time
	LastLiveness time.Time
	Conn         SignalConnection
}

// Open reports whether the underlying connection is still usable.
func (s TransportSession) Open() bool {
	return s.Conn != nil && !s.Conn.IsClosed()
}
