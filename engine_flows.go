package portalauth

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/MrEthical07/portalauth/internal/flows"
	"github.com/MrEthical07/portalauth/permission"
)

func (e *Engine) initFlowDeps() {
	e.flowDeps = flows.Deps{
		Login: flows.LoginDeps{
			FindAccount:    e.findByEmail,
			IsNotFound:     isNotFound,
			VerifyPassword: e.passwords.Verify,
			BurnPassword:   e.passwords.Burn,
			Mint:           e.mint,
			StoreRenewal:   e.vault.Issue,
			EmitAudit:      e.emitAudit,
			Warn:           e.warn,
		},
		Refresh: flows.RefreshDeps{
			OpenRenewal:   e.vault.Decrypt,
			VerifyRenewal: e.verifyRenewal,
			FindAccount:   e.findByID,
			IsNotFound:    isNotFound,
			RevokeAll:     e.vault.RevokeAll,
			Mint:          e.mint,
			RotateRenewal: e.vault.Rotate,
			IsConflict:    isConflict,
			EmitAudit:     e.emitAudit,
			Warn:          e.warn,
		},
		Authenticate: flows.AuthenticateDeps{
			VerifyAccess: e.access.Verify,
		},
		Register: flows.RegisterDeps{
			NewID:             uuid.NewString,
			HashPassword:      e.passwords.Hash,
			CreateAccount:     e.createAccount,
			IsDuplicate:       isDuplicate,
			MinPasswordLength: e.config.Password.MinPasswordLength,
			EmitAudit:         e.emitAudit,
		},
		Status: flows.UpdateAccountStatusDeps{
			FindAccount:         e.findByID,
			IsNotFound:          isNotFound,
			IsStale:             isStaleStatus,
			UpdateAccountStatus: e.updateStatus,
			RevokeAll:           e.vault.RevokeAll,
			EmitAudit:           e.emitAudit,
		},
	}

	if e.config.Password.UpgradeOnLogin {
		e.flowDeps.Login.HashPassword = e.passwords.Hash
		e.flowDeps.Login.UpdatePasswordHash = e.accounts.UpdatePasswordHash
	}
	if e.metrics.LatencyEnabled() {
		e.flowDeps.Authenticate.Now = e.now
		e.flowDeps.Authenticate.Observe = func(d time.Duration) {
			e.metrics.Observe(MetricAuthenticateLatency, d)
		}
	}
}

func (e *Engine) createAccount(ctx context.Context, r flows.AccountRecord) (flows.AccountRecord, error) {
	acct := fromRecord(r)
	acct.PasswordHash = r.PasswordHash
	created, err := e.accounts.CreateAccount(ctx, acct)
	if err != nil {
		return flows.AccountRecord{}, err
	}
	return toRecord(created), nil
}

func (e *Engine) updateStatus(ctx context.Context, id string, from, to permission.Status) (flows.AccountRecord, error) {
	updated, err := e.accounts.UpdateAccountStatus(ctx, id, from, to)
	if err != nil {
		return flows.AccountRecord{}, err
	}
	return toRecord(updated), nil
}
