package portalauth

import (
	"context"
	"errors"

	"github.com/MrEthical07/portalauth/internal/flows"
	"github.com/MrEthical07/portalauth/password"
)

const (
	defaultListLimit = 50
	maxListLimit     = 100
)

// Register creates a PENDING, unverified account. ADMIN cannot be
// self-registered; an employer may carry a company profile id.
func (e *Engine) Register(ctx context.Context, req CreateAccountRequest) (Account, error) {
	if e == nil || e.accounts == nil {
		return Account{}, ErrEngineNotReady
	}

	res := flows.RunRegister(ctx, flows.RegisterRequest{
		Email:            req.Email,
		Password:         req.Password,
		Role:             req.Role,
		CompanyProfileID: req.CompanyProfileID,
	}, e.flowDeps.Register)

	switch res.Failure {
	case flows.RegisterFailureNone:
		e.metrics.Inc(MetricAccountCreated)
		return fromRecord(res.Account), nil
	case flows.RegisterFailureNotReady:
		return Account{}, ErrEngineNotReady
	case flows.RegisterFailureInvalid, flows.RegisterFailureRole:
		return Account{}, ErrInvalidRequest
	case flows.RegisterFailureHash:
		if errors.Is(res.Err, password.ErrTooShort) || errors.Is(res.Err, password.ErrTooLong) {
			return Account{}, ErrInvalidRequest
		}
		return Account{}, unavailable(res.Err)
	case flows.RegisterFailureDuplicate:
		e.metrics.Inc(MetricAccountDuplicate)
		return Account{}, ErrAccountExists
	default:
		return Account{}, unavailable(res.Err)
	}
}

// ListAccounts returns accounts matching filter for the admin console. Limit
// defaults to 50 and is capped at 100.
func (e *Engine) ListAccounts(ctx context.Context, filter AccountFilter) ([]Account, error) {
	if e == nil || e.accounts == nil {
		return nil, ErrEngineNotReady
	}
	if filter.Offset < 0 || filter.Limit < 0 {
		return nil, ErrInvalidRequest
	}
	filter.Limit = ClampListLimit(filter.Limit)

	accounts, err := e.accounts.ListAccounts(ctx, filter)
	if err != nil {
		return nil, unavailable(err)
	}
	for i := range accounts {
		accounts[i].PasswordHash = ""
	}
	return accounts, nil
}

// ClampListLimit applies the list default and cap to a requested page size.
func ClampListLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultListLimit
	case limit > maxListLimit:
		return maxListLimit
	default:
		return limit
	}
}
