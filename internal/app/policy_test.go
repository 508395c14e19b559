package app

import (
	"context"
	"testing"
	"time"

	"github.com/dkeye/Voice/internal/domain"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_SlidingWindow(t *testing.T) {
	req := require.New(t)
	rl := NewRateLimiter(2, time.Minute)
	now := time.Now()
	rl.now = func() time.Time { return now }

	req.True(rl.Allow("a"))
	req.True(rl.Allow("a"))
	req.False(rl.Allow("a"))
	req.True(rl.Allow("b"))

	now = now.Add(61 * time.Second)
	req.True(rl.Allow("a"))
}

func TestRateLimiter_Forget(t *testing.T) {
	req := require.New(t)
	rl := NewRateLimiter(1, time.Minute)
	now := time.Now()
	rl.now = func() time.Time { return now }
	rl.Allow("a")

	now = now.Add(2 * time.Minute)
	rl.Forget()
	req.Empty(rl.history)
}

func TestRateLimiter_Disabled(t *testing.T) {
	var nilLimiter *RateLimiter
	require.True(t, nilLimiter.Allow("a"))
	rl := NewRateLimiter(0, time.Minute)
	for i := 0; i < 10; i++ {
		require.True(t, rl.Allow("a"))
	}
}

func TestOpenGate(t *testing.T) {
	ok, err := OpenGate{}.IsBookingWindowValid(context.Background(), domain.UserID("a"), domain.UserID("b"))
	require.NoError(t, err)
	require.True(t, ok)
}
