package refreshguard

import "errors"

var (
	// ErrPrincipalRequired is an exported constant or variable used by the session core.
	ErrPrincipalRequired = errors.New("principal required")
	// ErrRefreshInvalid is an exported constant or variable used by the session core.
	ErrRefreshInvalid = errors.New("invalid refresh token")
	// ErrRefreshExpired is an exported constant or variable used by the session core.
	ErrRefreshExpired = errors.New("refresh token expired")
	// ErrSessionRevoked is an exported constant or variable used by the session core.
	ErrSessionRevoked = errors.New("session revoked")
	// ErrRefreshReuse is an exported constant or variable used by the session core.
	ErrRefreshReuse = errors.New("refresh token reuse detected")
	// ErrStoreUnavailable is an exported constant or variable used by the session core.
	ErrStoreUnavailable = errors.New("refresh token store unavailable")
	// ErrManagerNotReady is an exported constant or variable used by the session core.
	ErrManagerNotReady = errors.New("manager not initialized")
)
