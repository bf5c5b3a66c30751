package portalauth

import "errors"

var (
	// ErrUnauthorized means no valid session credential was presented.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidCredentials is returned by Login for an unknown email or a
	// wrong password. The two cases are indistinguishable to callers.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrRefreshInvalid is returned by Refresh when the renewal cookie does not
	// decrypt, does not verify, or belongs to an account that can no longer
	// sign in.
	ErrRefreshInvalid = errors.New("refresh credential invalid")
	// ErrRefreshReuse is returned by Refresh when the renewal credential was
	// already rotated or revoked.
	ErrRefreshReuse = errors.New("refresh credential reuse detected")
	ErrPermissionDenied = errors.New("permission denied")
	// ErrAccountDisabled is returned by Login for SUSPENDED or REJECTED
	// accounts, only after the password verified.
	ErrAccountDisabled   = errors.New("account disabled")
	ErrAccountExists     = errors.New("account already exists")
	ErrAccountNotFound   = errors.New("account not found")
	ErrInvalidTransition = errors.New("invalid account status transition")
	ErrInvalidRequest    = errors.New("invalid request")
	ErrEngineNotReady    = errors.New("engine not initialized")
	// ErrUnavailable wraps storage failures. Callers fail closed on it.
	ErrUnavailable = errors.New("backend unavailable")
)
