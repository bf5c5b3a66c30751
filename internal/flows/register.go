package flows

import (
	"context"
	"strings"

	"github.com/MrEthical07/portalauth/internal/audit"
	"github.com/MrEthical07/portalauth/permission"
)

// RegisterRequest is the flow-local registration input.
type RegisterRequest struct {
	Email            string
	Password         string
	Role             permission.Role
	CompanyProfileID string
}

// RegisterFailureKind classifies registration failures for root-level mapping.
type RegisterFailureKind int

const (
	RegisterFailureNone RegisterFailureKind = iota
	RegisterFailureNotReady
	RegisterFailureInvalid
	RegisterFailureRole
	RegisterFailureHash
	RegisterFailureDuplicate
	RegisterFailureStore
)

type RegisterResult struct {
	Failure RegisterFailureKind
	Err     error
	Account AccountRecord
}

// RegisterDeps captures account creation dependencies.
type RegisterDeps struct {
	NewID             func() string
	HashPassword      func(password string) (string, error)
	CreateAccount     func(ctx context.Context, acct AccountRecord) (AccountRecord, error)
	IsDuplicate       func(error) bool
	MinPasswordLength int
	EmitAudit         AuditFunc
}

// RunRegister creates a PENDING, unverified account. ADMIN accounts are never
// self-registered.
func RunRegister(ctx context.Context, req RegisterRequest, deps RegisterDeps) RegisterResult {
	if deps.NewID == nil || deps.HashPassword == nil || deps.CreateAccount == nil {
		return RegisterResult{Failure: RegisterFailureNotReady}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noAudit
	}

	email := NormalizeEmail(req.Email)
	if email == "" || strings.Count(email, "@") != 1 || strings.HasPrefix(email, "@") || strings.HasSuffix(email, "@") {
		return RegisterResult{Failure: RegisterFailureInvalid}
	}
	if len(req.Password) < deps.MinPasswordLength || req.Password == "" {
		return RegisterResult{Failure: RegisterFailureInvalid}
	}
	if !req.Role.Valid() || req.Role == permission.RoleAdmin {
		return RegisterResult{Failure: RegisterFailureRole}
	}

	companyProfileID := ""
	if req.Role == permission.RoleEmployer {
		companyProfileID = strings.TrimSpace(req.CompanyProfileID)
	}

	hash, err := deps.HashPassword(req.Password)
	if err != nil {
		return RegisterResult{Failure: RegisterFailureHash, Err: err}
	}

	created, err := deps.CreateAccount(ctx, AccountRecord{
		ID:               deps.NewID(),
		Email:            email,
		PasswordHash:     hash,
		Role:             req.Role,
		Status:           permission.StatusPending,
		Verified:         false,
		CompanyProfileID: companyProfileID,
	})
	if err != nil {
		if deps.IsDuplicate != nil && deps.IsDuplicate(err) {
			return RegisterResult{Failure: RegisterFailureDuplicate, Err: err}
		}
		return RegisterResult{Failure: RegisterFailureStore, Err: err}
	}

	deps.EmitAudit(ctx, audit.EventAccountCreated, created.ID, true, nil, func() map[string]string {
		return map[string]string{"role": created.Role.String()}
	})

	created.PasswordHash = ""
	return RegisterResult{Account: created}
}
