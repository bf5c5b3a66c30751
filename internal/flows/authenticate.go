package flows

import (
	"time"

	"github.com/MrEthical07/portalauth/jwt"
	"github.com/MrEthical07/portalauth/permission"
)

// AuthenticateResult is a verified session credential plus the capability
// set its claims resolve to.
type AuthenticateResult struct {
	Claims       jwt.Claims
	Capabilities permission.Mask64
	Err          error
}

// AuthenticateDeps captures session credential verification.
type AuthenticateDeps struct {
	VerifyAccess func(token string) (jwt.Claims, error)
	Now          func() time.Time
	Observe      func(time.Duration)
}

// RunAuthenticate verifies token. It never touches storage.
func RunAuthenticate(token string, deps AuthenticateDeps) (AuthenticateResult, bool) {
	if deps.VerifyAccess == nil || token == "" {
		return AuthenticateResult{}, false
	}
	if deps.Now != nil && deps.Observe != nil {
		start := deps.Now()
		defer func() { deps.Observe(deps.Now().Sub(start)) }()
	}

	claims, err := deps.VerifyAccess(token)
	if err != nil {
		return AuthenticateResult{Err: err}, false
	}
	return AuthenticateResult{
		Claims:       claims,
		Capabilities: permission.Resolve(claims.Role(), claims.Status, claims.Verified),
	}, true
}
