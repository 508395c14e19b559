package app

import (
	"context"
	"time"

	"github.com/dkeye/Voice/internal/core"
	"github.com/dkeye/Voice/internal/domain"
	"github.com/rs/zerolog/log"
)

const (
	DefaultSweepInterval = 30 * time.Second
	DefaultStaleAfter    = 60 * time.Second
)

// PresenceReconciler mirrors registry changes into the persisted snapshot and independently
// retires snapshot rows that stopped being refreshed. The snapshot is advisory only.
type PresenceReconciler struct {
	store   Store
	persist *Persister

	interval   time.Duration
	staleAfter time.Duration
	now        func() time.Time
}

func NewPresenceReconciler(store Store, persist *Persister, interval, staleAfter time.Duration) *PresenceReconciler {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return &PresenceReconciler{
		store:      store,
		persist:    persist,
		interval:   interval,
		staleAfter: staleAfter,
		now:        time.Now,
	}
}

// OnRegister upserts an online row. Not transactional with the registry mutation.
func (p *PresenceReconciler) OnRegister(s core.TransportSession) {
	snap := domain.PresenceSnapshot{
		IdentityID:  s.Identity.ID,
		TransportID: s.TransportID,
		Kind:        s.Identity.Kind,
		Status:      domain.PresenceOnline,
		LastSeen:    p.now(),
	}
	p.persist.Enqueue("presence.online", func(ctx context.Context) error {
		return p.store.SavePresence(ctx, snap)
	})
}

func (p *PresenceReconciler) OnUnregister(who domain.Identity) {
	snap := domain.PresenceSnapshot{
		IdentityID: who.ID,
		Kind:       who.Kind,
		Status:     domain.PresenceOffline,
		LastSeen:   p.now(),
	}
	p.persist.Enqueue("presence.offline", func(ctx context.Context) error {
		return p.store.SavePresence(ctx, snap)
	})
}

func (p *PresenceReconciler) OnTouch(id domain.UserID) {
	at := p.now()
	p.persist.Enqueue("presence.touch", func(ctx context.Context) error {
		return p.store.TouchPresence(ctx, id, at)
	})
}

// Snapshot reads the persisted row for id.
func (p *PresenceReconciler) Snapshot(ctx context.Context, id domain.UserID) (domain.PresenceSnapshot, bool, error) {
	return p.store.Presence(ctx, id)
}

// Sweep marks every online row not refreshed within the staleness threshold as offline,
// regardless of what the registry holds.
func (p *PresenceReconciler) Sweep(ctx context.Context) (int64, error) {
	n, err := p.store.MarkStaleOffline(ctx, p.now().Add(-p.staleAfter))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		log.Info().Str("module", "app.presence").Int64("marked_offline", n).Msg("presence sweep")
	}
	return n, nil
}

func (p *PresenceReconciler) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := p.Sweep(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Str("module", "app.presence").Msg("presence sweep failed")
			}
		}
	}
}
