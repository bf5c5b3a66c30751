package flows

import (
	"context"

	"github.com/MrEthical07/portalauth/internal/audit"
	"github.com/MrEthical07/portalauth/permission"
)

// Admin status actions.
const (
	ActionApprove  = "approve"
	ActionReject   = "reject"
	ActionSuspend  = "suspend"
	ActionActivate = "activate"
)

var transitions = map[string]struct {
	from []permission.Status
	to   permission.Status
}{
	ActionApprove:  {from: []permission.Status{permission.StatusPending, permission.StatusRejected}, to: permission.StatusApproved},
	ActionReject:   {from: []permission.Status{permission.StatusPending}, to: permission.StatusRejected},
	ActionSuspend:  {from: []permission.Status{permission.StatusPending, permission.StatusApproved}, to: permission.StatusSuspended},
	ActionActivate: {from: []permission.Status{permission.StatusSuspended}, to: permission.StatusApproved},
}

// KnownAction reports whether action is one of the admin status actions.
func KnownAction(action string) bool {
	_, ok := transitions[action]
	return ok
}

// NextStatus returns the status action produces from current, or false when
// the transition is not allowed.
func NextStatus(action string, current permission.Status) (permission.Status, bool) {
	t, ok := transitions[action]
	if !ok {
		return permission.StatusUnknown, false
	}
	for _, from := range t.from {
		if from == current {
			return t.to, true
		}
	}
	return permission.StatusUnknown, false
}

// StatusFailureKind classifies status update failures for root-level mapping.
type StatusFailureKind int

const (
	StatusFailureNone StatusFailureKind = iota
	StatusFailureNotReady
	StatusFailureUnknownAction
	StatusFailureSelf
	StatusFailureNotFound
	StatusFailureLookup
	StatusFailureTransition
	StatusFailureUpdate
	StatusFailureRevoke
)

type UpdateAccountStatusResult struct {
	Failure StatusFailureKind
	Err     error
	From    permission.Status
	To      permission.Status
	Account AccountRecord
	Revoked int64
}

type UpdateAccountStatusDeps struct {
	FindAccount         func(ctx context.Context, accountID string) (AccountRecord, error)
	IsNotFound          func(error) bool
	// IsStale reports an UpdateAccountStatus error meaning the status moved
	// away from the value read.
	IsStale             func(error) bool
	UpdateAccountStatus func(ctx context.Context, accountID string, from, to permission.Status) (AccountRecord, error)
	RevokeAll           func(ctx context.Context, ownerID string) (int64, error)
	EmitAudit           AuditFunc
}

// RunUpdateAccountStatus applies an admin action to targetID. A result of
// SUSPENDED or REJECTED revokes every renewal record the target holds. If the
// status write succeeds but revocation fails, the new status stands and the
// failure is reported; refresh re-checks status and revokes again.
func RunUpdateAccountStatus(ctx context.Context, actorID, targetID, action string, deps UpdateAccountStatusDeps) UpdateAccountStatusResult {
	if deps.FindAccount == nil || deps.UpdateAccountStatus == nil || deps.RevokeAll == nil {
		return UpdateAccountStatusResult{Failure: StatusFailureNotReady}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noAudit
	}
	if !KnownAction(action) {
		return UpdateAccountStatusResult{Failure: StatusFailureUnknownAction}
	}
	if targetID == "" {
		return UpdateAccountStatusResult{Failure: StatusFailureNotFound}
	}
	if actorID != "" && actorID == targetID {
		return UpdateAccountStatusResult{Failure: StatusFailureSelf}
	}

	current, err := deps.FindAccount(ctx, targetID)
	if err != nil {
		if deps.IsNotFound != nil && deps.IsNotFound(err) {
			return UpdateAccountStatusResult{Failure: StatusFailureNotFound, Err: err}
		}
		return UpdateAccountStatusResult{Failure: StatusFailureLookup, Err: err}
	}

	next, ok := NextStatus(action, current.Status)
	if !ok {
		return UpdateAccountStatusResult{Failure: StatusFailureTransition, From: current.Status}
	}

	updated, err := deps.UpdateAccountStatus(ctx, targetID, current.Status, next)
	if err != nil {
		if deps.IsNotFound != nil && deps.IsNotFound(err) {
			return UpdateAccountStatusResult{Failure: StatusFailureNotFound, Err: err}
		}
		if deps.IsStale != nil && deps.IsStale(err) {
			return UpdateAccountStatusResult{Failure: StatusFailureTransition, Err: err, From: current.Status}
		}
		return UpdateAccountStatusResult{Failure: StatusFailureUpdate, Err: err, From: current.Status}
	}
	updated.PasswordHash = ""

	deps.EmitAudit(ctx, audit.EventAccountStatusChanged, targetID, true, nil, func() map[string]string {
		return map[string]string{
			"action": action,
			"actor":  actorID,
			"from":   current.Status.String(),
			"to":     next.String(),
		}
	})

	res := UpdateAccountStatusResult{From: current.Status, To: next, Account: updated}
	if !next.Disabled() {
		return res
	}

	revoked, err := deps.RevokeAll(ctx, targetID)
	if err != nil {
		res.Failure = StatusFailureRevoke
		res.Err = err
		return res
	}
	res.Revoked = revoked
	deps.EmitAudit(ctx, audit.EventSessionsRevoked, targetID, true, nil, func() map[string]string {
		return map[string]string{"reason": "status_" + action}
	})
	return res
}
