// Package rtc builds the WebRTC configuration handed to clients. Media flows peer to peer;
// the server only relays signaling.
package rtc

import (
	"fmt"

	"github.com/pion/stun/v3"
	"github.com/pion/webrtc/v4"
)

const DefaultSTUN = "stun:stun.l.google.com:19302"

func DefaultWebRTCConfig() webrtc.Configuration {
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{{URLs: []string{DefaultSTUN}}},
	}
}

// Configuration validates every ICE server URL and returns the client configuration.
// An empty list yields a configuration without ICE servers.
func Configuration(urls []string) (webrtc.Configuration, error) {
	for _, raw := range urls {
		if _, err := stun.ParseURI(raw); err != nil {
			return webrtc.Configuration{}, fmt.Errorf("ice server %q: %w", raw, err)
		}
	}
	cfg := webrtc.Configuration{ICEServers: []webrtc.ICEServer{}}
	if len(urls) > 0 {
		cfg.ICEServers = append(cfg.ICEServers, webrtc.ICEServer{URLs: urls})
	}
	return cfg, nil
}
