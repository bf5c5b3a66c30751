package portalauth

import (
	"context"
	"errors"

	"github.com/MrEthical07/portalauth/internal/flows"
)

// UpdateAccountStatus applies an admin action to targetID on behalf of
// actorID. Suspending or rejecting an account revokes all of its renewal
// records; its outstanding session credentials stay valid until they expire.
//
// When the status is written but revocation fails, the returned error wraps
// ErrUnavailable and StatusChange still reports the new status.
func (e *Engine) UpdateAccountStatus(ctx context.Context, actorID, targetID string, action StatusAction) (StatusChange, error) {
	if e == nil || e.accounts == nil {
		return StatusChange{}, ErrEngineNotReady
	}

	res := flows.RunUpdateAccountStatus(ctx, actorID, targetID, string(action), e.flowDeps.Status)
	change := StatusChange{
		Account:         fromRecord(res.Account),
		From:            res.From,
		To:              res.To,
		SessionsRevoked: res.Revoked,
	}

	switch res.Failure {
	case flows.StatusFailureNone:
		e.metrics.Inc(MetricAccountStatusChanged)
		e.metrics.Add(MetricSessionsRevoked, uint64(res.Revoked))
		return change, nil
	case flows.StatusFailureNotReady:
		return StatusChange{}, ErrEngineNotReady
	case flows.StatusFailureUnknownAction:
		return StatusChange{}, ErrInvalidRequest
	case flows.StatusFailureSelf:
		return StatusChange{}, ErrPermissionDenied
	case flows.StatusFailureNotFound:
		return StatusChange{}, ErrAccountNotFound
	case flows.StatusFailureTransition:
		return StatusChange{}, ErrInvalidTransition
	case flows.StatusFailureRevoke:
		e.metrics.Inc(MetricAccountStatusChanged)
		e.warn("portalauth: status of %s changed to %s but revocation failed: %v", targetID, res.To, res.Err)
		return change, errors.Join(ErrUnavailable, res.Err)
	default:
		return StatusChange{}, unavailable(res.Err)
	}
}
