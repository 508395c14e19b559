package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPresenceSnapshot_OnlineWithin(t *testing.T) {
	now := time.Now()
	online := PresenceSnapshot{Status: PresenceOnline, LastSeen: now.Add(-10 * time.Second)}
	require.True(t, online.OnlineWithin(now, 30*time.Second))
	require.False(t, online.OnlineWithin(now, 5*time.Second))

	offline := PresenceSnapshot{Status: PresenceOffline, LastSeen: now}
	require.False(t, offline.OnlineWithin(now, time.Minute))
}
