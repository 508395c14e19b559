package app

import (
	"context"
	"testing"
	"time"

	"github.com/dkeye/Voice/internal/core"
	"github.com/dkeye/Voice/internal/domain"
	"github.com/stretchr/testify/require"
)

func TestPresenceReconciler_MirrorsRegistry(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store := newMemStore()
	persist := NewPersister(16)
	startPersister(t, persist)
	p := NewPresenceReconciler(store, persist, time.Hour, time.Minute)
	alice := ident("alice", domain.KindDoctor)

	p.OnRegister(core.TransportSession{TransportID: "t1", Identity: alice})
	req.NoError(persist.Flush(ctx))
	snap, ok, err := p.Snapshot(ctx, alice.ID)
	req.NoError(err)
	req.True(ok)
	req.Equal(domain.PresenceOnline, snap.Status)
	req.Equal(domain.TransportID("t1"), snap.TransportID)
	req.Equal(domain.KindDoctor, snap.Kind)

	p.OnUnregister(alice)
	req.NoError(persist.Flush(ctx))
	snap, _, _ = p.Snapshot(ctx, alice.ID)
	req.Equal(domain.PresenceOffline, snap.Status)
}

func TestPresenceReconciler_SweepIgnoresRegistry(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store := newMemStore()
	p := NewPresenceReconciler(store, NewPersister(1), time.Hour, time.Minute)

	req.NoError(store.SavePresence(ctx, domain.PresenceSnapshot{
		IdentityID: "old", Status: domain.PresenceOnline, LastSeen: time.Now().Add(-2 * time.Minute),
	}))
	req.NoError(store.SavePresence(ctx, domain.PresenceSnapshot{
		IdentityID: "fresh", Status: domain.PresenceOnline, LastSeen: time.Now(),
	}))

	n, err := p.Sweep(ctx)
	req.NoError(err)
	req.Equal(int64(1), n)

	old, _, _ := p.Snapshot(ctx, "old")
	req.Equal(domain.PresenceOffline, old.Status)
	fresh, _, _ := p.Snapshot(ctx, "fresh")
	req.Equal(domain.PresenceOnline, fresh.Status)
}

func TestPresenceReconciler_TouchRefreshesLastSeen(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store := newMemStore()
	persist := NewPersister(16)
	startPersister(t, persist)
	p := NewPresenceReconciler(store, persist, time.Hour, time.Minute)
	before := time.Now().Add(-time.Hour)
	req.NoError(store.SavePresence(ctx, domain.PresenceSnapshot{IdentityID: "a", Status: domain.PresenceOnline, LastSeen: before}))

	p.OnTouch("a")
	req.NoError(persist.Flush(ctx))

	snap, _, _ := p.Snapshot(ctx, "a")
	req.True(snap.LastSeen.After(before))
}

func TestPresenceReconciler_RunSweepsPeriodically(t *testing.T) {
	req := require.New(t)
	store := newMemStore()
	p := NewPresenceReconciler(store, NewPersister(1), 10*time.Millisecond, time.Minute)
	req.NoError(store.SavePresence(context.Background(), domain.PresenceSnapshot{
		IdentityID: "old", Status: domain.PresenceOnline, LastSeen: time.Now().Add(-time.Hour),
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { _ = p.Run(ctx); close(done) }()

	req.Eventually(func() bool {
		snap, _, _ := p.Snapshot(context.Background(), "old")
		return snap.Status == domain.PresenceOffline
	}, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}
