package app

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/dkeye/Voice/internal/domain"
	"github.com/stretchr/testify/require"
)

func TestSignalRelay_DeliversOpaquePayload(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry(time.Minute)
	bobConn := &fakeConn{}
	reg.Register(ident("bob", domain.KindDoctor), "tb", bobConn)
	relay := NewSignalRelay(reg)

	payload := json.RawMessage(`{"sdp":"v=0...","type":"offer"}`)
	err := relay.Relay(Sender{Identity: "alice", TransportID: "ta"}, SignalOffer, "tb", "r1", payload)
	req.NoError(err)

	ev := bobConn.last()
	req.Equal("offer", ev["type"])
	req.Equal("ta", ev["fromTransportId"])
	req.Equal("alice", ev["fromIdentity"])
	req.Equal("r1", ev["roomId"])
	req.Equal(map[string]any{"sdp": "v=0...", "type": "offer"}, ev["payload"])
}

func TestSignalRelay_SupersededTargetIsGone(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry(time.Minute)
	bob := ident("bob", domain.KindDoctor)
	reg.Register(bob, "t1", &fakeConn{})
	reg.Register(bob, "t2", &fakeConn{})
	relay := NewSignalRelay(reg)
	from := Sender{Identity: "alice", TransportID: "ta"}

	req.ErrorIs(relay.Relay(from, SignalICECandidate, "t1", "", json.RawMessage(`{}`)), domain.ErrTransportGone)
	req.NoError(relay.Relay(from, SignalICECandidate, "t2", "", json.RawMessage(`{}`)))
	req.ErrorIs(relay.Relay(from, SignalAnswer, "nope", "", json.RawMessage(`{}`)), domain.ErrTransportGone)
}

func TestSignalRelay_RejectsUnknownKind(t *testing.T) {
	relay := NewSignalRelay(NewRegistry(time.Minute))
	err := relay.Relay(Sender{}, SignalKind("bye"), "t", "", nil)
	require.ErrorIs(t, err, domain.ErrInvalidSignal)
}
