package rtc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfiguration(t *testing.T) {
	req := require.New(t)

	cfg, err := Configuration([]string{DefaultSTUN, "turn:turn.example.com:3478?transport=udp"})
	req.NoError(err)
	req.Len(cfg.ICEServers, 1)
	req.Len(cfg.ICEServers[0].URLs, 2)

	cfg, err = Configuration(nil)
	req.NoError(err)
	req.Empty(cfg.ICEServers)

	_, err = Configuration([]string{"http://not-ice"})
	req.Error(err)
}

func TestDefaultWebRTCConfig(t *testing.T) {
	cfg := DefaultWebRTCConfig()
	require.Equal(t, []string{DefaultSTUN}, cfg.ICEServers[0].URLs)
}
