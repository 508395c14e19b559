package app

import (
	"context"
	"time"

	"github.com/dkeye/Voice/internal/domain"
)

// Store is the system of record for calls, history and the presence snapshot.
type Store interface {
	SaveCall(ctx context.Context, c domain.CallSession) error
	OpenCalls(ctx context.Context) ([]domain.CallSession, error)

	SaveHistory(ctx context.Context, h domain.CallHistoryRecord) error
	History(ctx context.Context, id domain.UserID, limit, offset int) ([]domain.CallHistoryRecord, int, error)

	SavePresence(ctx context.Context, p domain.PresenceSnapshot) error
	TouchPresence(ctx context.Context, id domain.UserID, at time.Time) error
	Presence(ctx context.Context, id domain.UserID) (domain.PresenceSnapshot, bool, error)
	MarkStaleOffline(ctx context.Context, before time.Time) (int64, error)
}
