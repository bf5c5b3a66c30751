package portalauth

import (
	"context"
	"time"

	"github.com/MrEthical07/portalauth/jwt"
	"github.com/MrEthical07/portalauth/permission"
)

// Account is a portal user as the auth core sees it. Role is fixed at
// creation; Status changes only through UpdateAccountStatus.
type Account struct {
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

// AccountFilter selects accounts for the admin list. Zero values match all.
type AccountFilter struct {
	Status permission.Status
	Role   permission.Role
	Limit  int
	Offset int
}

// AccountStore is the persistence boundary for accounts. Implementations
// return errors wrapping ErrAccountNotFound for missing rows and
// ErrAccountExists for duplicate emails. UpdateAccountStatus writes only
// while the stored status still equals from, and otherwise returns an error
// wrapping ErrInvalidTransition. Anything else is treated as a backend
// failure.
type AccountStore interface {
	GetAccountByEmail(ctx context.Context, email string) (Account, error)
	GetAccountByID(ctx context.Context, id string) (Account, error)
	CreateAccount(ctx context.Context, acct Account) (Account, error)
	UpdateAccountStatus(ctx context.Context, id string, from, to permission.Status) (Account, error)
	UpdatePasswordHash(ctx context.Context, id, hash string) error
	ListAccounts(ctx context.Context, filter AccountFilter) ([]Account, error)
}

// LoginResult is returned by Login and Refresh. RefreshToken is the renewal
// ciphertext the client stores in its cookie.
type LoginResult struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
	Account          Account
}

// AuthResult is a verified session credential. Role, Status and Verified are
// the values captured at issuance.
type AuthResult struct {
	UserID           string
	TokenID          string
	Attributes       jwt.RoleAttributes
	Role             permission.Role
	Status           permission.Status
	Verified         bool
	CompanyProfileID string
	Capabilities     permission.Mask64
	IssuedAt         time.Time
	ExpiresAt        time.Time
}

// Standing is the live account state used by verified-required routes.
type Standing struct {
	Status   permission.Status
	Verified bool
}

// Eligible reports whether the account may use verified-required routes.
func (s Standing) Eligible() bool {
	return s.Status == permission.StatusApproved && s.Verified
}

// CreateAccountRequest is the registration input.
type CreateAccountRequest struct {
	Email            string
	Password         string
	Role             permission.Role
	CompanyProfileID string
}

// StatusAction is an admin account action.
type StatusAction string

const (
	ActionApprove  StatusAction = "approve"
	ActionReject   StatusAction = "reject"
	ActionSuspend  StatusAction = "suspend"
	ActionActivate StatusAction = "activate"
)

// StatusChange reports the effect of UpdateAccountStatus.
type StatusChange struct {
	Account         Account
	From            permission.Status
	To              permission.Status
	SessionsRevoked int64
}
