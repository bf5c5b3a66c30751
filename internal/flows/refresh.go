package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/portalauth/internal/audit"
)

// RefreshFailureKind classifies refresh flow failures for root-level mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureNotReady
	RefreshFailureDecrypt
	RefreshFailureVerify
	RefreshFailureLookup
	RefreshFailureAccountGone
	RefreshFailureAccountDisabled
	RefreshFailureMint
	RefreshFailureReuse
	RefreshFailureRotate
)

// RefreshResult carries either the rotated credentials or failure metadata.
type RefreshResult struct {
	Failure          RefreshFailureKind
	Err              error
	UserID           string
	Account          AccountRecord
	Revoked          int64
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	OpenRenewal   func(ciphertext string) (string, bool)
	VerifyRenewal func(plaintext string) (subjectID string, err error)
	FindAccount   func(ctx context.Context, accountID string) (AccountRecord, error)
	IsNotFound    func(error) bool
	RevokeAll     func(ctx context.Context, ownerID string) (int64, error)
	Mint          MintFunc
	RotateRenewal func(ctx context.Context, ownerID, oldCiphertext, tokenID, plaintext string, expiresAt time.Time) (string, error)
	IsConflict    func(error) bool
	EmitAudit     AuditFunc
	Warn          func(string, ...any)
}

// RunRefresh exchanges a renewal ciphertext for a new credential pair. Every
// failure is terminal; no credential is returned unless rotation committed.
func RunRefresh(ctx context.Context, ciphertext string, deps RefreshDeps) RefreshResult {
	if deps.EmitAudit == nil {
		deps.EmitAudit = noAudit
	}
	if deps.Warn == nil {
		deps.Warn = noWarn
	}
	if deps.OpenRenewal == nil || deps.VerifyRenewal == nil || deps.FindAccount == nil ||
		deps.Mint == nil || deps.RotateRenewal == nil {
		return RefreshResult{Failure: RefreshFailureNotReady}
	}

	fail := func(kind RefreshFailureKind, userID, reason string, err error) RefreshResult {
		deps.EmitAudit(ctx, audit.EventRefreshFailure, userID, false, err, func() map[string]string {
			return map[string]string{"reason": reason}
		})
		return RefreshResult{Failure: kind, Err: err, UserID: userID}
	}

	plaintext, ok := deps.OpenRenewal(ciphertext)
	if !ok {
		return fail(RefreshFailureDecrypt, "", "decrypt", nil)
	}

	subjectID, err := deps.VerifyRenewal(plaintext)
	if err != nil {
		return fail(RefreshFailureVerify, "", "verify", err)
	}

	acct, err := deps.FindAccount(ctx, subjectID)
	switch {
	case err != nil && deps.IsNotFound != nil && deps.IsNotFound(err):
		revoked := revokeQuietly(ctx, subjectID, deps)
		res := fail(RefreshFailureAccountGone, subjectID, "account_missing", nil)
		res.Revoked = revoked
		return res
	case err != nil:
		return fail(RefreshFailureLookup, subjectID, "account_lookup", err)
	case acct.Status.Disabled():
		revoked := revokeQuietly(ctx, acct.ID, deps)
		res := fail(RefreshFailureAccountDisabled, acct.ID, "account_disabled", nil)
		res.Revoked = revoked
		res.Account = acct
		return res
	}

	pair, err := deps.Mint(acct)
	if err != nil {
		return fail(RefreshFailureMint, acct.ID, "mint", err)
	}

	next, err := deps.RotateRenewal(ctx, acct.ID, ciphertext, pair.RenewalTokenID, pair.RenewalPlaintext, pair.RenewalExpiresAt)
	if err != nil {
		if deps.IsConflict != nil && deps.IsConflict(err) {
			deps.EmitAudit(ctx, audit.EventRefreshReuseDetected, acct.ID, false, err, nil)
			return RefreshResult{Failure: RefreshFailureReuse, Err: err, UserID: acct.ID}
		}
		return fail(RefreshFailureRotate, acct.ID, "rotate", err)
	}

	deps.EmitAudit(ctx, audit.EventRefreshSuccess, acct.ID, true, nil, nil)

	acct.PasswordHash = ""
	return RefreshResult{
		UserID:           acct.ID,
		Account:          acct,
		AccessToken:      pair.AccessToken,
		AccessExpiresAt:  pair.AccessExpiresAt,
		RefreshToken:     next,
		RefreshExpiresAt: pair.RenewalExpiresAt,
	}
}

func revokeQuietly(ctx context.Context, ownerID string, deps RefreshDeps) int64 {
	if deps.RevokeAll == nil || ownerID == "" {
		return 0
	}
	n, err := deps.RevokeAll(ctx, ownerID)
	if err != nil {
		deps.Warn("portalauth: revoke during refresh failed: %v", err)
		return 0
	}
	return n
}
