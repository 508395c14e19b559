package signal

import (
	"testing"

	"github.com/dkeye/Voice/internal/app"
	"github.com/dkeye/Voice/internal/core"
	"github.com/dkeye/Voice/internal/domain"
	"github.com/stretchr/testify/require"
)

func TestDecode_Variants(t *testing.T) {
	req := require.New(t)
	ctl := NewSignalWSController(nil, 0, 0)

	msg, err := ctl.decode([]byte(`{"type":"request-call","receiverId":"bob","callType":"audio"}`))
	req.NoError(err)
	req.Equal(requestCallMsg{ReceiverID: "bob", CallType: "audio"}, msg)

	msg, err = ctl.decode([]byte(`{"type":"ice-candidate","targetTransportId":"t2","payload":{"candidate":"c"}}`))
	req.NoError(err)
	sig, ok := msg.(signalMsg)
	req.True(ok)
	req.Equal(app.SignalICECandidate, sig.Kind)
	req.JSONEq(`{"candidate":"c"}`, string(sig.Payload))

	msg, err = ctl.decode([]byte(`{"type":"whoami"}`))
	req.NoError(err)
	req.IsType(whoamiMsg{}, msg)

	msg, err = ctl.decode([]byte(`{"type":"force-cleanup"}`))
	req.NoError(err)
	req.Equal(forceCleanupMsg{}, msg)
}

func TestDecode_Rejects(t *testing.T) {
	ctl := NewSignalWSController(nil, 0, 0)
	cases := map[string]string{
		"not json":          `{`,
		"unknown type":      `{"type":"dance"}`,
		"missing receiver":  `{"type":"request-call"}`,
		"bad call type":     `{"type":"request-call","receiverId":"b","callType":"fax"}`,
		"bad decision":      `{"type":"respond-to-call","callId":"c","response":"maybe"}`,
		"missing room":      `{"type":"join-room"}`,
		"offer no target":   `{"type":"offer","payload":{}}`,
		"answer no payload": `{"type":"answer","targetTransportId":"t"}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ctl.decode([]byte(raw))
			require.ErrorIs(t, err, domain.ErrBadPayload)
		})
	}
}

func TestWsSignalConn_TrySendAfterClose(t *testing.T) {
	req := require.New(t)
	c := &WsSignalConn{send: make(chan core.Frame, 1)}

	req.NoError(c.TrySend([]byte("a")))
	req.Error(c.TrySend([]byte("b")))
	c.Close()
	c.Close()
	req.True(c.IsClosed())
	req.Error(c.TrySend([]byte("c")))
}
