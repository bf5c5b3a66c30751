package portalauth

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/portalauth/jwt"
	"github.com/MrEthical07/portalauth/password"
	"github.com/MrEthical07/portalauth/refresh"
)

// Config is the full engine configuration. Build validates it; it is not
// modified afterwards.
type Config struct {
	JWT      JWTConfig
	Refresh  RefreshConfig
	Password PasswordConfig
	Gate     GateConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures the two credential managers. Session credentials are
// signed with AccessKey and renewal credentials with RefreshKey; the keys must
// differ. For ed25519 the keys are private keys and the matching public keys
// go in AccessPublicKey and RefreshPublicKey.
type JWTConfig struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningMethod jwt.SigningMethod

	AccessKey        []byte
	AccessPublicKey  []byte
	RefreshKey       []byte
	RefreshPublicKey []byte

	Issuer   string
	Audience string
	// Leeway applies to iat and nbf only; a credential is never accepted at
	// or after its expiry.
	Leeway time.Duration
	KeyID  string
}

/*
====================================
REFRESH CONFIG
====================================
*/

// RefreshConfig holds the renewal encryption key (32 bytes, AES-256).
type RefreshConfig struct {
	EncryptionKey []byte
}

// PasswordConfig holds Argon2id costs for new hashes. UpgradeOnLogin rehashes
// legacy bcrypt and under-cost Argon2 hashes after a successful login.
type PasswordConfig struct {
	Memory            uint32 // in KB
	Time              uint32
	Parallelism       uint8
	SaltLength        uint32
	KeyLength         uint32
	MaxPasswordBytes  int
	MinPasswordLength int
	UpgradeOnLogin    bool
}

// GateConfig controls how long claim-carried status is trusted on
// verified-required routes. Zero means every such request reads the account.
type GateConfig struct {
	StatusStaleness time.Duration
}

type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns production defaults. Keys are left empty and must be
// supplied.
func DefaultConfig() Config {
	pw := password.DefaultConfig()
	return Config{
		JWT: JWTConfig{
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    30 * 24 * time.Hour,
			SigningMethod: jwt.MethodHS256,
			Issuer:        "portalauth",
			Audience:      "portal",
		},
		Password: PasswordConfig{
			Memory:            pw.Memory,
			Time:              pw.Time,
			Parallelism:       pw.Parallelism,
			SaltLength:        pw.SaltLength,
			KeyLength:         pw.KeyLength,
			MaxPasswordBytes:  password.DefaultMaxPasswordBytes,
			MinPasswordLength: 10,
			UpgradeOnLogin:    true,
		},
		Gate: GateConfig{
			StatusStaleness: 0,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.AccessKey = cloneBytes(cfg.JWT.AccessKey)
	out.JWT.AccessPublicKey = cloneBytes(cfg.JWT.AccessPublicKey)
	out.JWT.RefreshKey = cloneBytes(cfg.JWT.RefreshKey)
	out.JWT.RefreshPublicKey = cloneBytes(cfg.JWT.RefreshPublicKey)
	out.Refresh.EncryptionKey = cloneBytes(cfg.Refresh.EncryptionKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func (c PasswordConfig) argon2() password.Config {
	return password.Config{
		Memory:           c.Memory,
		Time:             c.Time,
		Parallelism:      c.Parallelism,
		SaltLength:       c.SaltLength,
		KeyLength:        c.KeyLength,
		MaxPasswordBytes: c.MaxPasswordBytes,
	}
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first configuration error. Key material is checked
// again, more thoroughly, when Build constructs the managers and the cipher.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.AccessTTL > 24*time.Hour {
		return errors.New("JWT AccessTTL must be <= 24h")
	}
	if c.JWT.RefreshTTL <= c.JWT.AccessTTL {
		return errors.New("JWT RefreshTTL must be greater than AccessTTL")
	}
	if c.JWT.SigningMethod != jwt.MethodEd25519 && c.JWT.SigningMethod != jwt.MethodHS256 {
		return errors.New("unsupported JWT signing method")
	}
	if len(c.JWT.AccessKey) == 0 || len(c.JWT.RefreshKey) == 0 {
		return errors.New("JWT AccessKey and RefreshKey are required")
	}
	if bytes.Equal(c.JWT.AccessKey, c.JWT.RefreshKey) {
		return errors.New("JWT AccessKey and RefreshKey must differ")
	}
	if c.JWT.SigningMethod == jwt.MethodEd25519 &&
		(len(c.JWT.AccessPublicKey) == 0 || len(c.JWT.RefreshPublicKey) == 0) {
		return errors.New("ed25519 requires AccessPublicKey and RefreshPublicKey")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}

	// Refresh
	if len(c.Refresh.EncryptionKey) != refresh.KeySize {
		return fmt.Errorf("%w: need %d bytes, got %d", refresh.ErrKeyInvalid, refresh.KeySize, len(c.Refresh.EncryptionKey))
	}

	// Password
	if c.Password.MinPasswordLength < 0 {
		return errors.New("Password MinPasswordLength must be >= 0")
	}
	if c.Password.MaxPasswordBytes < 0 {
		return errors.New("Password MaxPasswordBytes must be >= 0")
	}

	// Gate
	if c.Gate.StatusStaleness < 0 {
		return errors.New("Gate StatusStaleness must be >= 0")
	}
	if c.Gate.StatusStaleness > c.JWT.AccessTTL {
		return errors.New("Gate StatusStaleness must not exceed AccessTTL")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	return nil
}
