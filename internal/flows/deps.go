package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/portalauth/permission"
)

// Deps groups flow dependency sets. Root engine builds this once and delegates
// request methods to the matching flow implementation.
type Deps struct {
	Login        LoginDeps
	Refresh      RefreshDeps
	Authenticate AuthenticateDeps
	Register     RegisterDeps
	Status       UpdateAccountStatusDeps
}

// AccountRecord is the flow-local account model.
type AccountRecord struct {
	ID               string
	Email            string
	PasswordHash     string
	Role             permission.Role
	Status           permission.Status
	Verified         bool
	CompanyProfileID string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Pair is a freshly minted session credential plus the renewal plaintext that
// still has to be stored by the vault.
type Pair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RenewalTokenID   string
	RenewalPlaintext string
	RenewalExpiresAt time.Time
}

// MintFunc signs a new session credential and renewal plaintext for acct.
type MintFunc func(acct AccountRecord) (Pair, error)

// AuditFunc emits one audit event. meta is evaluated lazily.
type AuditFunc func(ctx context.Context, event, userID string, success bool, err error, meta func() map[string]string)

func noAudit(context.Context, string, string, bool, error, func() map[string]string) {}

func noWarn(string, ...any) {}
