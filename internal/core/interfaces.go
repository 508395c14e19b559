//go:generate go run go.uber.org/mock/mockgen -source=interfaces.go -destination=../mocks/mock_interfaces.go -package=mocks
package core

import (
	"context"

	"github.com/dkeye/Voice/internal/domain"
)

// IdentityResolver turns a transport credential into an identity.
// Implementations fail with domain.ErrUnauthorized.
type IdentityResolver interface {
	Resolve(ctx context.Context, credential string) (domain.Identity, error)
}

// BookingGate is the optional scheduling policy consulted before a call is admitted.
type BookingGate interface {
	IsBookingWindowValid(ctx context.Context, caller, receiver domain.UserID) (bool, error)
}

// Notifier delivers an event to an identity. Fire-and-forget: callers log failures and move on.
type Notifier interface {
	Notify(ctx context.Context, to domain.UserID, ev Event) error
}
