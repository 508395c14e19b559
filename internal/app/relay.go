package app

import (
	"encoding/json"

	"github.com/dkeye/Voice/internal/domain"
	"github.com/rs/zerolog/log"
)

type SignalKind string

const (
	SignalOffer        SignalKind = "offer"
	SignalAnswer       SignalKind = "answer"
	SignalICECandidate SignalKind = "ice-candidate"
)

func (k SignalKind) Valid() bool {
	switch k {
	case SignalOffer, SignalAnswer, SignalICECandidate:
		return true
	}
	return false
}

// Sender identifies the transport a signal came from.
type Sender struct {
	Identity    domain.UserID
	TransportID domain.TransportID
}

// SignalRelay forwards opaque offer/answer/ICE payloads to a transport by handle.
// It keeps no state and gives no delivery guarantee.
type SignalRelay struct {
	transports TransportLookup
}

func NewSignalRelay(transports TransportLookup) *SignalRelay {
	return &SignalRelay{transports: transports}
}

// Relay delivers payload to target. An absent or closed target yields domain.ErrTransportGone.
func (r *SignalRelay) Relay(from Sender, kind SignalKind, target domain.TransportID, roomID domain.RoomID, payload json.RawMessage) error {
	if !kind.Valid() {
		return domain.ErrInvalidSignal
	}
	sess, ok := r.transports.LookupTransport(target)
	if !ok {
		log.Debug().Str("module", "app.relay").Str("kind", string(kind)).Str("target", string(target)).Msg("target gone, dropped")
		return domain.ErrTransportGone
	}
	err := Deliver(sess.Conn, SignalEvent{
		Type:            string(kind),
		Payload:         payload,
		FromTransportID: from.TransportID,
		FromIdentity:    from.Identity,
		RoomID:          roomID,
	})
	if err != nil {
		log.Debug().Err(err).Str("module", "app.relay").Str("kind", string(kind)).Str("target", string(target)).Msg("relay dropped")
		return domain.ErrTransportGone
	}
	return nil
}
