package domain

import "errors"

var (
	ErrUnauthorized      = errors.New("unauthorized")
	ErrNotFound          = errors.New("call or room not found")
	ErrAlreadyInCall     = errors.New("a call is already in progress")
	ErrTargetUnreachable = errors.New("target is not currently online")
	ErrSelfCall          = errors.New("cannot call yourself")
	ErrInvalidTransition = errors.New("invalid call state transition")
	ErrTransportGone     = errors.New("transport gone")
	ErrNotPermitted      = errors.New("call not permitted outside a booking window")
	ErrRateLimited       = errors.New("too many call requests")
	ErrInvalidSignal     = errors.New("invalid signal kind")
	ErrBadPayload        = errors.New("bad payload")
	ErrForbidden         = errors.New("forbidden")
)

// ErrorCode maps an error to the code reported to transports.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnauthorized):
		return "UNAUTHORIZED"
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrAlreadyInCall):
		return "CALL_IN_PROGRESS"
	case errors.Is(err, ErrTargetUnreachable):
		return "USER_OFFLINE"
	case errors.Is(err, ErrSelfCall):
		return "SELF_CALL"
	case errors.Is(err, ErrInvalidTransition):
		return "INVALID_TRANSITION"
	case errors.Is(err, ErrTransportGone):
		return "TRANSPORT_GONE"
	case errors.Is(err, ErrNotPermitted):
		return "OUTSIDE_BOOKING_WINDOW"
	case errors.Is(err, ErrRateLimited):
		return "RATE_LIMITED"
	case errors.Is(err, ErrInvalidSignal):
		return "INVALID_SIGNAL"
	case errors.Is(err, ErrBadPayload):
		return "BAD_PAYLOAD"
	case errors.Is(err, ErrForbidden):
		return "FORBIDDEN"
	}
	return "INTERNAL"
}
