package portalauth

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/MrEthical07/portalauth/internal/audit"
	"github.com/MrEthical07/portalauth/jwt"
	"github.com/MrEthical07/portalauth/password"
	"github.com/MrEthical07/portalauth/refresh"
)

// Builder assembles an Engine. A Builder is single-use.
type Builder struct {
	config Config

	accounts  AccountStore
	renewals  refresh.Repository
	auditSink AuditSink
	logger    *log.Logger
	now       func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

func (b *Builder) WithAccountStore(store AccountStore) *Builder {
	b.accounts = store
	return b
}

// WithRefreshRepository sets where renewal records are persisted. Postgres is
// the production backend; Redis is supported for deployments without one.
func (b *Builder) WithRefreshRepository(repo refresh.Repository) *Builder {
	b.renewals = repo
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the logger for operational warnings. Defaults to
// log.Default().
func (b *Builder) WithLogger(l *log.Logger) *Builder {
	b.logger = l
	return b
}

// WithClock overrides time.Now for issuance, verification and record
// timestamps. Intended for tests.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates configuration and wires the engine. Any error here is a
// startup failure.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.accounts == nil {
		return nil, errors.New("account store required")
	}
	if b.renewals == nil {
		return nil, errors.New("refresh repository required")
	}

	now := b.now
	if now == nil {
		now = time.Now
	}
	logger := b.logger
	if logger == nil {
		logger = log.Default()
	}

	cipher, err := refresh.NewCipher(cfg.Refresh.EncryptionKey)
	if err != nil {
		return nil, err
	}
	vault, err := refresh.NewVault(cipher, b.renewals)
	if err != nil {
		return nil, err
	}
	vault.WithClock(now)

	accessManager, err := jwt.NewManager(jwt.Config{
		Use:           jwt.UseAccess,
		SigningMethod: cfg.JWT.SigningMethod,
		PrivateKey:    cfg.JWT.AccessKey,
		PublicKey:     cfg.JWT.AccessPublicKey,
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		RequireIAT:    true,
		KeyID:         cfg.JWT.KeyID,
		Now:           now,
	})
	if err != nil {
		return nil, fmt.Errorf("session credential manager: %w", err)
	}
	renewalManager, err := jwt.NewManager(jwt.Config{
		Use:           jwt.UseRefresh,
		SigningMethod: cfg.JWT.SigningMethod,
		PrivateKey:    cfg.JWT.RefreshKey,
		PublicKey:     cfg.JWT.RefreshPublicKey,
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		RequireIAT:    true,
		KeyID:         cfg.JWT.KeyID,
		Now:           now,
	})
	if err != nil {
		return nil, fmt.Errorf("renewal credential manager: %w", err)
	}

	hasher, err := password.NewArgon2(cfg.Password.argon2())
	if err != nil {
		return nil, err
	}
	verifier, err := password.NewVerifier(hasher)
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:    cfg,
		accounts:  b.accounts,
		vault:     vault,
		access:    accessManager,
		renewal:   renewalManager,
		passwords: verifier,
		metrics:   NewMetrics(cfg.Metrics),
		logger:    logger,
		now:       now,
	}
	if cfg.Audit.Enabled {
		engine.audit = audit.NewDispatcher(audit.Config{
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, b.auditSink)
	}
	engine.initFlowDeps()

	b.built = true
	return engine, nil
}
