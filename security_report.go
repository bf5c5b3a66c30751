package portalauth

import "time"

// SecurityReport is a read-only snapshot of the engine's security posture.
// It never carries key material.
type SecurityReport struct {
	SigningAlgorithm  string
	AccessTTL         time.Duration
	RefreshTTL        time.Duration
	Leeway            time.Duration
	StatusStaleness   time.Duration
	LiveStatusChecks  bool
	RenewalEncryption string
	Argon2            PasswordConfigReport
	MinPasswordLength int
	HashUpgradeActive bool
	AuditActive       bool
	AuditDropIfFull   bool
	MetricsActive     bool
}

type PasswordConfigReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	return SecurityReport{
		SigningAlgorithm:  string(e.config.JWT.SigningMethod),
		AccessTTL:         e.config.JWT.AccessTTL,
		RefreshTTL:        e.config.JWT.RefreshTTL,
		Leeway:            e.config.JWT.Leeway,
		StatusStaleness:   e.config.Gate.StatusStaleness,
		LiveStatusChecks:  e.config.Gate.StatusStaleness == 0,
		RenewalEncryption: "aes-256-gcm",
		Argon2: PasswordConfigReport{
			Memory:      e.config.Password.Memory,
			Time:        e.config.Password.Time,
			Parallelism: e.config.Password.Parallelism,
			SaltLength:  e.config.Password.SaltLength,
			KeyLength:   e.config.Password.KeyLength,
		},
		MinPasswordLength: e.config.Password.MinPasswordLength,
		HashUpgradeActive: e.config.Password.UpgradeOnLogin,
		AuditActive:       e.config.Audit.Enabled,
		AuditDropIfFull:   e.config.Audit.Enabled && e.config.Audit.DropIfFull,
		MetricsActive:     e.config.Metrics.Enabled,
	}
}
