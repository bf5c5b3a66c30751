package portalauth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/MrEthical07/portalauth/internal/audit"
	"github.com/MrEthical07/portalauth/internal/flows"
	"github.com/MrEthical07/portalauth/jwt"
	"github.com/MrEthical07/portalauth/password"
	"github.com/MrEthical07/portalauth/refresh"
)

// Engine issues, rotates and verifies portal credentials. It is safe for
// concurrent use once built.
type Engine struct {
	config    Config
	accounts  AccountStore
	vault     *refresh.Vault
	access    *jwt.Manager
	renewal   *jwt.Manager
	passwords *password.Verifier
	audit     *audit.Dispatcher
	metrics   *Metrics
	logger    *log.Logger
	now       func() time.Time

	flowDeps flows.Deps
}

// Close flushes pending audit events.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// RecordMetric increments id. HTTP middleware uses it for gate and admission
// rejections.
func (e *Engine) RecordMetric(id MetricID) {
	if e == nil {
		return
	}
	e.metrics.Inc(id)
}

// StatusStaleness is how long claim-carried status is trusted on
// verified-required routes.
func (e *Engine) StatusStaleness() time.Duration {
	return e.config.Gate.StatusStaleness
}

// AccessTTL is the lifetime of a session credential.
func (e *Engine) AccessTTL() time.Duration {
	return e.config.JWT.AccessTTL
}

// Now returns the engine clock.
func (e *Engine) Now() time.Time {
	return e.now()
}

func (e *Engine) warn(format string, args ...any) {
	if e.logger != nil {
		e.logger.Printf(format, args...)
	}
}

// Login verifies email and password and issues a session credential and an
// encrypted renewal credential. Unknown email and wrong password both return
// ErrInvalidCredentials.
func (e *Engine) Login(ctx context.Context, email, password string) (LoginResult, error) {
	if e == nil || e.accounts == nil {
		return LoginResult{}, ErrEngineNotReady
	}

	res := flows.RunLogin(ctx, email, password, e.flowDeps.Login)
	switch res.Failure {
	case flows.LoginFailureNone:
		e.metrics.Inc(MetricLoginSuccess)
		return LoginResult{
			AccessToken:      res.AccessToken,
			AccessExpiresAt:  res.AccessExpiresAt,
			RefreshToken:     res.RefreshToken,
			RefreshExpiresAt: res.RefreshExpiresAt,
			Account:          fromRecord(res.Account),
		}, nil
	case flows.LoginFailureNotReady:
		return LoginResult{}, ErrEngineNotReady
	case flows.LoginFailureInvalidInput, flows.LoginFailureNotFound, flows.LoginFailureMismatch:
		e.metrics.Inc(MetricLoginFailure)
		return LoginResult{}, ErrInvalidCredentials
	case flows.LoginFailureDisabled:
		e.metrics.Inc(MetricLoginDisabled)
		return LoginResult{}, ErrAccountDisabled
	default:
		e.metrics.Inc(MetricLoginFailure)
		return LoginResult{}, unavailable(res.Err)
	}
}

// Refresh exchanges a renewal ciphertext for a new pair. The presented
// ciphertext is single-use: a second presentation returns ErrRefreshReuse.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (LoginResult, error) {
	if e == nil || e.vault == nil {
		return LoginResult{}, ErrEngineNotReady
	}

	res := flows.RunRefresh(ctx, refreshToken, e.flowDeps.Refresh)
	if res.Revoked > 0 {
		e.metrics.Add(MetricSessionsRevoked, uint64(res.Revoked))
	}
	switch res.Failure {
	case flows.RefreshFailureNone:
		e.metrics.Inc(MetricRefreshSuccess)
		return LoginResult{
			AccessToken:      res.AccessToken,
			AccessExpiresAt:  res.AccessExpiresAt,
			RefreshToken:     res.RefreshToken,
			RefreshExpiresAt: res.RefreshExpiresAt,
			Account:          fromRecord(res.Account),
		}, nil
	case flows.RefreshFailureNotReady:
		return LoginResult{}, ErrEngineNotReady
	case flows.RefreshFailureReuse:
		e.metrics.Inc(MetricRefreshReuse)
		return LoginResult{}, ErrRefreshReuse
	case flows.RefreshFailureLookup, flows.RefreshFailureRotate, flows.RefreshFailureMint:
		e.metrics.Inc(MetricRefreshFailure)
		return LoginResult{}, unavailable(res.Err)
	default:
		e.metrics.Inc(MetricRefreshFailure)
		return LoginResult{}, ErrRefreshInvalid
	}
}

// Logout revokes every renewal record held by userID.
func (e *Engine) Logout(ctx context.Context, userID string) error {
	if e == nil || e.vault == nil {
		return ErrEngineNotReady
	}
	if userID == "" {
		return ErrUnauthorized
	}
	n, err := e.vault.RevokeAll(ctx, userID)
	if err != nil {
		return unavailable(err)
	}
	e.metrics.Inc(MetricLogout)
	e.metrics.Add(MetricSessionsRevoked, uint64(n))
	e.emitAudit(ctx, audit.EventLogout, userID, true, nil, func() map[string]string {
		return map[string]string{"revoked": fmt.Sprint(n)}
	})
	return nil
}

// Authenticate verifies a session credential. It performs no I/O; the
// returned status is the one captured at issuance.
func (e *Engine) Authenticate(token string) (AuthResult, error) {
	if e == nil || e.access == nil {
		return AuthResult{}, ErrEngineNotReady
	}
	res, ok := flows.RunAuthenticate(token, e.flowDeps.Authenticate)
	if !ok {
		return AuthResult{}, ErrUnauthorized
	}
	c := res.Claims
	return AuthResult{
		UserID:           c.SubjectID,
		TokenID:          c.TokenID,
		Attributes:       c.Attributes,
		Role:             c.Role(),
		Status:           c.Status,
		Verified:         c.Verified,
		CompanyProfileID: c.CompanyProfileID(),
		Capabilities:     res.Capabilities,
		IssuedAt:         c.IssuedAt,
		ExpiresAt:        c.ExpiresAt,
	}, nil
}

// Standing reads the current status of userID from the account store.
func (e *Engine) Standing(ctx context.Context, userID string) (Standing, error) {
	if e == nil || e.accounts == nil {
		return Standing{}, ErrEngineNotReady
	}
	acct, err := e.accounts.GetAccountByID(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return Standing{}, ErrAccountNotFound
		}
		return Standing{}, unavailable(err)
	}
	return Standing{Status: acct.Status, Verified: acct.Verified}, nil
}

func (e *Engine) mint(acct flows.AccountRecord) (flows.Pair, error) {
	attrs, err := jwt.AttributesFor(acct.Role, acct.CompanyProfileID)
	if err != nil {
		return flows.Pair{}, err
	}

	now := e.now()
	accessTTL := e.config.JWT.AccessTTL
	refreshTTL := e.config.JWT.RefreshTTL

	access, err := e.access.Issue(jwt.Claims{
		SubjectID:  acct.ID,
		TokenID:    uuid.NewString(),
		Attributes: attrs,
		Status:     acct.Status,
		Verified:   acct.Verified,
	}, accessTTL)
	if err != nil {
		return flows.Pair{}, err
	}

	renewalID := uuid.NewString()
	renewal, err := e.renewal.Issue(jwt.Claims{
		SubjectID: acct.ID,
		TokenID:   renewalID,
	}, refreshTTL)
	if err != nil {
		return flows.Pair{}, err
	}

	return flows.Pair{
		AccessToken:      access,
		AccessExpiresAt:  now.Add(accessTTL).Truncate(time.Second),
		RenewalTokenID:   renewalID,
		RenewalPlaintext: renewal,
		RenewalExpiresAt: now.Add(refreshTTL).Truncate(time.Second),
	}, nil
}

func (e *Engine) verifyRenewal(plaintext string) (string, error) {
	claims, err := e.renewal.Verify(plaintext)
	if err != nil {
		return "", err
	}
	return claims.SubjectID, nil
}

func (e *Engine) findByEmail(ctx context.Context, email string) (flows.AccountRecord, error) {
	acct, err := e.accounts.GetAccountByEmail(ctx, email)
	if err != nil {
		return flows.AccountRecord{}, err
	}
	return toRecord(acct), nil
}

func (e *Engine) findByID(ctx context.Context, id string) (flows.AccountRecord, error) {
	acct, err := e.accounts.GetAccountByID(ctx, id)
	if err != nil {
		return flows.AccountRecord{}, err
	}
	return toRecord(acct), nil
}

func toRecord(a Account) flows.AccountRecord {
	return flows.AccountRecord{
		ID:               a.ID,
		Email:            a.Email,
		PasswordHash:     a.PasswordHash,
		Role:             a.Role,
		Status:           a.Status,
		Verified:         a.Verified,
		CompanyProfileID: a.CompanyProfileID,
		CreatedAt:        a.CreatedAt,
		UpdatedAt:        a.UpdatedAt,
	}
}

func fromRecord(r flows.AccountRecord) Account {
	return Account{
		ID:               r.ID,
		Email:            r.Email,
		Role:             r.Role,
		Status:           r.Status,
		Verified:         r.Verified,
		CompanyProfileID: r.CompanyProfileID,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrAccountNotFound)
}

func isConflict(err error) bool {
	return errors.Is(err, refresh.ErrConflict)
}

func isDuplicate(err error) bool {
	return errors.Is(err, ErrAccountExists)
}

func isStaleStatus(err error) bool {
	return errors.Is(err, ErrInvalidTransition)
}

func unavailable(err error) error {
	if err == nil {
		return ErrUnavailable
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
