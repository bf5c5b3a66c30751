package flows

import (
	"context"
	"strings"
	"time"

	"github.com/MrEthical07/portalauth/internal/audit"
)

// LoginFailureKind classifies login failures for root-level mapping.
type LoginFailureKind int

const (
	LoginFailureNone LoginFailureKind = iota
	LoginFailureNotReady
	LoginFailureInvalidInput
	LoginFailureLookup
	LoginFailureNotFound
	LoginFailureMismatch
	LoginFailureDisabled
	LoginFailureMint
	LoginFailureStore
)

// LoginResult carries either the issued credentials or failure metadata.
type LoginResult struct {
	Failure          LoginFailureKind
	Err              error
	Account          AccountRecord
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// LoginDeps captures login dependencies.
type LoginDeps struct {
	FindAccount        func(ctx context.Context, email string) (AccountRecord, error)
	IsNotFound         func(error) bool
	VerifyPassword     func(password, hash string) (ok bool, upgrade bool, err error)
	BurnPassword       func(password string)
	HashPassword       func(password string) (string, error)
	UpdatePasswordHash func(ctx context.Context, accountID, hash string) error
	Mint               MintFunc
	StoreRenewal       func(ctx context.Context, ownerID, tokenID, plaintext string, expiresAt time.Time) (string, error)
	EmitAudit          AuditFunc
	Warn               func(string, ...any)
}

// NormalizeEmail trims and lower-cases an email for lookup and storage.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// RunLogin verifies credentials and issues a session credential plus an
// encrypted renewal credential. Unknown accounts still pay for one password
// hash so response timing does not reveal which emails exist.
func RunLogin(ctx context.Context, email, password string, deps LoginDeps) LoginResult {
	if deps.EmitAudit == nil {
		deps.EmitAudit = noAudit
	}
	if deps.Warn == nil {
		deps.Warn = noWarn
	}
	if deps.BurnPassword == nil {
		deps.BurnPassword = func(string) {}
	}
	if deps.FindAccount == nil || deps.VerifyPassword == nil || deps.Mint == nil || deps.StoreRenewal == nil {
		return LoginResult{Failure: LoginFailureNotReady}
	}

	email = NormalizeEmail(email)
	fail := func(kind LoginFailureKind, userID, reason string, err error) LoginResult {
		deps.EmitAudit(ctx, audit.EventLoginFailure, userID, false, err, func() map[string]string {
			return map[string]string{"reason": reason}
		})
		return LoginResult{Failure: kind, Err: err}
	}

	if email == "" || password == "" {
		deps.BurnPassword(password)
		return fail(LoginFailureInvalidInput, "", "empty_input", nil)
	}

	acct, err := deps.FindAccount(ctx, email)
	if err != nil {
		if deps.IsNotFound != nil && deps.IsNotFound(err) {
			deps.BurnPassword(password)
			return fail(LoginFailureNotFound, "", "unknown_account", nil)
		}
		return fail(LoginFailureLookup, "", "account_lookup", err)
	}

	ok, upgrade, err := deps.VerifyPassword(password, acct.PasswordHash)
	if err != nil || !ok {
		return fail(LoginFailureMismatch, acct.ID, "password_mismatch", err)
	}

	if acct.Status.Disabled() {
		return fail(LoginFailureDisabled, acct.ID, "account_"+strings.ToLower(acct.Status.String()), nil)
	}

	if upgrade && deps.HashPassword != nil && deps.UpdatePasswordHash != nil {
		if hash, err := deps.HashPassword(password); err != nil {
			deps.Warn("portalauth: password hash upgrade generation failed")
		} else if err := deps.UpdatePasswordHash(ctx, acct.ID, hash); err != nil {
			deps.Warn("portalauth: password hash upgrade update failed: %v", err)
		}
	}
	password = ""

	pair, err := deps.Mint(acct)
	if err != nil {
		return fail(LoginFailureMint, acct.ID, "mint", err)
	}

	ciphertext, err := deps.StoreRenewal(ctx, acct.ID, pair.RenewalTokenID, pair.RenewalPlaintext, pair.RenewalExpiresAt)
	if err != nil {
		return fail(LoginFailureStore, acct.ID, "renewal_store", err)
	}

	deps.EmitAudit(ctx, audit.EventLoginSuccess, acct.ID, true, nil, func() map[string]string {
		return map[string]string{"role": acct.Role.String()}
	})

	acct.PasswordHash = ""
	return LoginResult{
		Account:          acct,
		AccessToken:      pair.AccessToken,
		AccessExpiresAt:  pair.AccessExpiresAt,
		RefreshToken:     ciphertext,
		RefreshExpiresAt: pair.RenewalExpiresAt,
	}
}
