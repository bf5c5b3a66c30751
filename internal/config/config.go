// Package config loads the portalauth service configuration from
// .env.local, an optional YAML file and the process environment, in that
// order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"

	"github.com/MrEthical07/portalauth"
	"github.com/MrEthical07/portalauth/internal/rate"
	"github.com/MrEthical07/portalauth/jwt"
	"github.com/MrEthical07/portalauth/refresh"
)

const (
	RenewalBackendPostgres = "postgres"
	RenewalBackendRedis    = "redis"
)

type Config struct {
	HTTPAddr        string
	DatabaseURL     string
	RedisAddr       string
	RedisPassword   string
	RenewalBackend  string
	CookieSecure    bool
	CookieDomain    string
	AccessLog       bool
	ShutdownTimeout time.Duration
	// TrustedProxies are CIDRs allowed to set X-Forwarded-For and X-Real-IP.
	TrustedProxies []string

	Engine portalauth.Config
	Limits Limits
}

type Limits struct {
	Auth    rate.Policy
	Routine rate.Policy
	Admin   rate.Policy
}

// fileConfig is the YAML shape. Secrets are never read from the file.
type fileConfig struct {
	HTTPAddr        string `yaml:"http_addr"`
	RenewalBackend  string `yaml:"renewal_backend"`
	CookieSecure    *bool  `yaml:"cookie_secure"`
	CookieDomain    string `yaml:"cookie_domain"`
	AccessLog       *bool  `yaml:"access_log"`
	ShutdownTimeout string   `yaml:"shutdown_timeout"`
	TrustedProxies  []string `yaml:"trusted_proxies"`

	JWT struct {
		AccessTTL  string `yaml:"access_ttl"`
		RefreshTTL string `yaml:"refresh_ttl"`
		Issuer     string `yaml:"issuer"`
		Audience   string `yaml:"audience"`
		Leeway     string `yaml:"leeway"`
	} `yaml:"jwt"`

	Gate struct {
		StatusStaleness string `yaml:"status_staleness"`
	} `yaml:"gate"`

	Password struct {
		MinLength      int   `yaml:"min_length"`
		UpgradeOnLogin *bool `yaml:"upgrade_on_login"`
	} `yaml:"password"`

	Limits map[string]struct {
		Limit  int    `yaml:"limit"`
		Window string `yaml:"window"`
	} `yaml:"limits"`
}

func defaults() Config {
	return Config{
		HTTPAddr:        ":8080",
		RenewalBackend:  RenewalBackendPostgres,
		CookieSecure:    true,
		AccessLog:       true,
		ShutdownTimeout: 10 * time.Second,
		Engine:          portalauth.DefaultConfig(),
		Limits: Limits{
			Auth:    rate.Policy{Name: "auth", Limit: 5, Window: 15 * time.Minute},
			Routine: rate.Policy{Name: "routine", Limit: 120, Window: time.Minute},
			Admin:   rate.Policy{Name: "admin", Limit: 20, Window: time.Minute},
		},
	}
}

// Load builds the configuration. path may be empty. Missing or invalid
// secrets are errors.
func Load(path string) (Config, error) {
	_ = godotenv.Load(".env.local")

	cfg := defaults()
	if path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	setString(&cfg.HTTPAddr, fc.HTTPAddr)
	setString(&cfg.RenewalBackend, fc.RenewalBackend)
	setString(&cfg.CookieDomain, fc.CookieDomain)
	if fc.CookieSecure != nil {
		cfg.CookieSecure = *fc.CookieSecure
	}
	if fc.AccessLog != nil {
		cfg.AccessLog = *fc.AccessLog
	}
	if len(fc.TrustedProxies) > 0 {
		cfg.TrustedProxies = fc.TrustedProxies
	}
	setString(&cfg.Engine.JWT.Issuer, fc.JWT.Issuer)
	setString(&cfg.Engine.JWT.Audience, fc.JWT.Audience)
	if fc.Password.MinLength > 0 {
		cfg.Engine.Password.MinPasswordLength = fc.Password.MinLength
	}
	if fc.Password.UpgradeOnLogin != nil {
		cfg.Engine.Password.UpgradeOnLogin = *fc.Password.UpgradeOnLogin
	}

	for _, d := range []struct {
		raw string
		dst *time.Duration
	}{
		{fc.ShutdownTimeout, &cfg.ShutdownTimeout},
		{fc.JWT.AccessTTL, &cfg.Engine.JWT.AccessTTL},
		{fc.JWT.RefreshTTL, &cfg.Engine.JWT.RefreshTTL},
		{fc.JWT.Leeway, &cfg.Engine.JWT.Leeway},
		{fc.Gate.StatusStaleness, &cfg.Engine.Gate.StatusStaleness},
	} {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("config: %s: %w", path, err)
		}
		*d.dst = v
	}

	for name, l := range fc.Limits {
		p := cfg.Limits.policy(name)
		if p == nil {
			return fmt.Errorf("config: %s: unknown limit %q", path, name)
		}
		if l.Limit > 0 {
			p.Limit = l.Limit
		}
		if l.Window != "" {
			w, err := time.ParseDuration(l.Window)
			if err != nil {
				return fmt.Errorf("config: %s: limit %q: %w", path, name, err)
			}
			p.Window = w
		}
	}
	return nil
}

func (l *Limits) policy(name string) *rate.Policy {
	switch name {
	case "auth":
		return &l.Auth
	case "routine":
		return &l.Routine
	case "admin":
		return &l.Admin
	default:
		return nil
	}
}

func applyEnv(cfg *Config) error {
	cfg.HTTPAddr = getenv("HTTP_ADDR", cfg.HTTPAddr)
	cfg.DatabaseURL = getenv("DATABASE_URL", cfg.DatabaseURL)
	cfg.RedisAddr = getenv("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = getenvKey("REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RenewalBackend = getenv("PORTAL_RENEWAL_BACKEND", cfg.RenewalBackend)
	cfg.CookieSecure = getenvBool("PORTAL_COOKIE_SECURE", cfg.CookieSecure)
	cfg.CookieDomain = getenv("PORTAL_COOKIE_DOMAIN", cfg.CookieDomain)
	cfg.AccessLog = getenvBool("PORTAL_ACCESS_LOG", cfg.AccessLog)
	cfg.ShutdownTimeout = getenvDuration("PORTAL_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	cfg.TrustedProxies = getenvList("PORTAL_TRUSTED_PROXIES", cfg.TrustedProxies)

	jc := &cfg.Engine.JWT
	jc.AccessTTL = getenvDuration("ACCESS_TOKEN_TTL", jc.AccessTTL)
	jc.RefreshTTL = getenvDuration("REFRESH_TOKEN_TTL", jc.RefreshTTL)
	jc.Issuer = getenv("JWT_ISSUER", jc.Issuer)
	jc.Audience = getenv("JWT_AUDIENCE", jc.Audience)
	jc.SigningMethod = jwt.SigningMethod(getenv("JWT_SIGNING_METHOD", string(jc.SigningMethod)))
	cfg.Engine.Gate.StatusStaleness = getenvDuration("PORTAL_STATUS_STALENESS", cfg.Engine.Gate.StatusStaleness)

	if v := getenvKey("PORTAL_JWT_SECRET", ""); v != "" {
		jc.AccessKey = []byte(v)
	}
	if v := getenvKey("PORTAL_REFRESH_SIGNING_SECRET", ""); v != "" {
		jc.RefreshKey = []byte(v)
	}
	if v := getenvKey("PORTAL_JWT_PUBLIC_KEY", ""); v != "" {
		jc.AccessPublicKey = []byte(v)
	}
	if v := getenvKey("PORTAL_REFRESH_PUBLIC_KEY", ""); v != "" {
		jc.RefreshPublicKey = []byte(v)
	}
	if v := getenvKey("PORTAL_REFRESH_ENCRYPTION_KEY", ""); v != "" {
		key, err := refresh.ParseKey(v)
		if err != nil {
			return fmt.Errorf("config: PORTAL_REFRESH_ENCRYPTION_KEY: %w", err)
		}
		cfg.Engine.Refresh.EncryptionKey = key
	}
	return nil
}

func (c Config) validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("config: DATABASE_URL is required"))
	}
	if len(c.Engine.Refresh.EncryptionKey) == 0 {
		errs = append(errs, errors.New("config: PORTAL_REFRESH_ENCRYPTION_KEY is required"))
	}
	if len(c.Engine.JWT.AccessKey) == 0 {
		errs = append(errs, errors.New("config: PORTAL_JWT_SECRET is required"))
	}
	if len(c.Engine.JWT.RefreshKey) == 0 {
		errs = append(errs, errors.New("config: PORTAL_REFRESH_SIGNING_SECRET is required"))
	}
	switch c.RenewalBackend {
	case RenewalBackendPostgres:
	case RenewalBackendRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("config: redis renewal backend needs REDIS_ADDR"))
		}
	default:
		errs = append(errs, fmt.Errorf("config: unknown renewal backend %q", c.RenewalBackend))
	}
	for _, cidr := range c.TrustedProxies {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			errs = append(errs, fmt.Errorf("config: trusted proxy %q: %w", cidr, err))
		}
	}
	for _, p := range []rate.Policy{c.Limits.Auth, c.Limits.Routine, c.Limits.Admin} {
		if p.Limit <= 0 || p.Window <= 0 {
			errs = append(errs, fmt.Errorf("config: limit %q needs a positive limit and window", p.Name))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	if err := c.Engine.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getenvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getenvList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	if val := os.Getenv(key + "_SECONDS"); val != "" {
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}

// getenvKey prefers KEY_FILE over KEY so secrets can be mounted as files.
func getenvKey(key, fallback string) string {
	if file := os.Getenv(key + "_FILE"); file != "" {
		if data, err := os.ReadFile(file); err == nil {
			return normalizePEM(string(data))
		}
	}
	if val := os.Getenv(key); val != "" {
		return normalizePEM(val)
	}
	return fallback
}

func normalizePEM(value string) string {
	value = strings.TrimSpace(value)
	if strings.Contains(value, "\\n") && !strings.Contains(value, "\n") {
		value = strings.ReplaceAll(value, "\\n", "\n")
	}
	return value
}
