package quotareset

import "errors"

var (
	// ErrUnauthorized is returned when the manual trigger is called without an admin claim
	ErrUnauthorized = errors.New("administrator claim required")

	// ErrInvalidKind is returned for an unknown reset kind
	ErrInvalidKind = errors.New("invalid reset kind")

	// ErrLimitsNotFound is returned when the limits singleton does not exist
	ErrLimitsNotFound = errors.New("limits config not found")

	// ErrStoreUnavailable is returned when no store is configured
	ErrStoreUnavailable = errors.New("store unavailable")
)
