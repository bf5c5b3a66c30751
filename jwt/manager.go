package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/MrEthical07/portalauth/permission"
)

// ErrInvalid is the single failure signal of [Manager.Verify]. The wrapped
// detail is for logs only and must not reach clients.
var ErrInvalid = errors.New("invalid credential")

// SigningMethod selects the JWS algorithm.
type SigningMethod string

const (
	MethodEd25519 SigningMethod = "ed25519"
	MethodHS256   SigningMethod = "hs256"
)

// Config configures a [Manager]. Use is mandatory; session and renewal
// managers must be built with different keys.
type Config struct {
	Use           TokenUse
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	// Leeway tolerates clock skew on iat and nbf. Expiry is never extended.
	Leeway       time.Duration
	RequireIAT   bool
	MaxFutureIAT time.Duration
	KeyID        string
	VerifyKeys   map[string][]byte

	// Now overrides the clock for issuance and validation. Defaults to time.Now.
	Now func() time.Time
}

// Manager issues and verifies signed credentials. It has no I/O and is safe
// for concurrent use.
type Manager struct {
	config Config
	now    func() time.Time
}

type wireClaims struct {
	Use              TokenUse `json:"use"`
	Role             string   `json:"role,omitempty"`
	CompanyProfileID string   `json:"cpid,omitempty"`
	Status           string   `json:"st,omitempty"`
	Verified         bool     `json:"vf,omitempty"`
	jwt.RegisteredClaims
}

// NewManager validates cfg and returns a ready Manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Use != UseAccess && cfg.Use != UseRefresh {
		return nil, errors.New("invalid token use")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = 10 * time.Minute
	}
	if cfg.MaxFutureIAT < 0 || cfg.MaxFutureIAT > 24*time.Hour {
		return nil, errors.New("invalid MaxFutureIAT configuration")
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)
	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) < 32 {
			return nil, errors.New("hs256 requires a key of at least 32 bytes")
		}
	case MethodEd25519:
		if len(cfg.PrivateKey) > 0 {
			if _, err := parseEdPrivateKey(cfg.PrivateKey); err != nil {
				return nil, err
			}
		}
		if len(cfg.PublicKey) > 0 {
			if _, err := parseEdPublicKey(cfg.PublicKey); err != nil {
				return nil, err
			}
		}
		if len(cfg.VerifyKeys) == 0 && len(cfg.PublicKey) == 0 {
			return nil, errors.New("ed25519 requires public key or verify key set")
		}
		for kid, key := range cfg.VerifyKeys {
			if strings.TrimSpace(kid) == "" {
				return nil, errors.New("verify key map contains empty kid")
			}
			if _, err := parseEdPublicKey(key); err != nil {
				return nil, fmt.Errorf("invalid ed25519 verify key for kid %q: %w", kid, err)
			}
		}
	default:
		return nil, errors.New("unsupported signing method")
	}
	if cfg.KeyID != "" && len(cfg.VerifyKeys) > 0 {
		if _, ok := cfg.VerifyKeys[cfg.KeyID]; !ok {
			return nil, errors.New("KeyID is not present in VerifyKeys")
		}
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Manager{config: cfg, now: now}, nil
}

// Use reports which credential kind this manager handles.
func (j *Manager) Use() TokenUse {
	return j.config.Use
}

// Issue signs claims with an expiry exactly ttl after now (second precision).
// A zero ttl yields a credential that is already expired. IssuedAt and
// ExpiresAt on the input are ignored.
func (j *Manager) Issue(claims Claims, ttl time.Duration) (string, error) {
	if ttl < 0 {
		return "", errors.New("negative credential TTL")
	}
	if claims.SubjectID == "" {
		return "", errors.New("credential subject is empty")
	}

	now := j.now()
	wire := wireClaims{
		Use: j.config.Use,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   claims.SubjectID,
			ID:        claims.TokenID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    j.config.Issuer,
		},
	}
	if j.config.Audience != "" {
		wire.Audience = jwt.ClaimStrings{j.config.Audience}
	}

	switch j.config.Use {
	case UseAccess:
		if claims.Attributes == nil {
			return "", errors.New("session credential requires role attributes")
		}
		if !claims.Status.Valid() {
			return "", permission.ErrUnknownStatus
		}
		wire.Role = claims.Attributes.Role().String()
		wire.CompanyProfileID = claims.CompanyProfileID()
		wire.Status = claims.Status.String()
		wire.Verified = claims.Verified
	case UseRefresh:
		if claims.TokenID == "" {
			return "", errors.New("renewal credential requires a token id")
		}
	}

	token := jwt.NewWithClaims(j.getMethod(), wire)
	if j.config.KeyID != "" {
		token.Header["kid"] = j.config.KeyID
	}

	signKey, err := j.getSignKey()
	if err != nil {
		return "", err
	}

	return token.SignedString(signKey)
}

// Verify checks signature, algorithm, key id, expiry, issuer, audience and
// token use. Every failure wraps [ErrInvalid].
func (j *Manager) Verify(tokenStr string) (Claims, error) {
	claims, err := j.verify(tokenStr)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return claims, nil
}

func (j *Manager) verify(tokenStr string) (Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{j.getMethod().Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.now),
	}
	if j.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(j.config.Leeway))
	}
	if j.config.RequireIAT {
		options = append(options, jwt.WithIssuedAt())
	}
	if j.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(j.config.Issuer))
	}
	if j.config.Audience != "" {
		options = append(options, jwt.WithAudience(j.config.Audience))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &wireClaims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != j.getMethod().Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}

		if len(j.config.VerifyKeys) > 0 {
			kid, _ := t.Header["kid"].(string)
			if kid == "" {
				return nil, errors.New("missing kid")
			}
			key, ok := j.config.VerifyKeys[kid]
			if !ok {
				return nil, errors.New("unknown kid")
			}
			return j.keyBytesToVerifyKey(key)
		}

		if j.config.KeyID != "" {
			kid, _ := t.Header["kid"].(string)
			if kid != j.config.KeyID {
				return nil, errors.New("unknown kid")
			}
		}

		return j.getVerifyKey()
	})
	if err != nil {
		return Claims{}, err
	}

	wire, ok := token.Claims.(*wireClaims)
	if !ok || !token.Valid {
		return Claims{}, jwt.ErrTokenInvalidClaims
	}
	if !j.now().Before(wire.ExpiresAt.Time) {
		return Claims{}, jwt.ErrTokenExpired
	}
	if wire.IssuedAt != nil && wire.IssuedAt.Time.After(j.now().Add(j.config.MaxFutureIAT)) {
		return Claims{}, errors.New("token iat too far in the future")
	}
	if wire.Use != j.config.Use {
		return Claims{}, fmt.Errorf("unexpected token use %q", wire.Use)
	}
	if wire.Subject == "" {
		return Claims{}, errors.New("missing subject")
	}

	out := Claims{
		SubjectID: wire.Subject,
		TokenID:   wire.ID,
		ExpiresAt: wire.ExpiresAt.Time,
	}
	if wire.IssuedAt != nil {
		out.IssuedAt = wire.IssuedAt.Time
	}

	switch j.config.Use {
	case UseAccess:
		role, err := permission.ParseRole(wire.Role)
		if err != nil {
			return Claims{}, err
		}
		status, err := permission.ParseStatus(wire.Status)
		if err != nil {
			return Claims{}, err
		}
		attrs, err := AttributesFor(role, wire.CompanyProfileID)
		if err != nil {
			return Claims{}, err
		}
		out.Attributes = attrs
		out.Status = status
		out.Verified = wire.Verified
	case UseRefresh:
		if wire.ID == "" {
			return Claims{}, errors.New("missing token id")
		}
	}

	return out, nil
}

func (j *Manager) getMethod() jwt.SigningMethod {
	switch j.config.SigningMethod {
	case MethodHS256:
		return jwt.SigningMethodHS256
	default:
		return jwt.SigningMethodEdDSA
	}
}

func (j *Manager) getSignKey() (interface{}, error) {
	switch j.config.SigningMethod {
	case MethodHS256:
		return j.config.PrivateKey, nil
	default:
		return parseEdPrivateKey(j.config.PrivateKey)
	}
}

func (j *Manager) getVerifyKey() (interface{}, error) {
	switch j.config.SigningMethod {
	case MethodHS256:
		return j.config.PrivateKey, nil
	default:
		return parseEdPublicKey(j.config.PublicKey)
	}
}

func (j *Manager) keyBytesToVerifyKey(key []byte) (interface{}, error) {
	switch j.config.SigningMethod {
	case MethodHS256:
		return key, nil
	default:
		return parseEdPublicKey(key)
	}
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
