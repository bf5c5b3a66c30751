package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	algorithmID = "argon2id"

	// DefaultMaxPasswordBytes caps input length when Config leaves it zero.
	DefaultMaxPasswordBytes = 1024

	minPasswordBytes = 10
)

// Cost floor. Hashes below it are refused outright rather than upgraded.
var floor = Config{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 16}

var (
	ErrTooShort = errors.New("password must be at least 10 bytes")
	ErrTooLong  = errors.New("password exceeds maximum length")

	errMalformed = errors.New("malformed argon2id hash")
)

// Config holds Argon2id cost parameters. Memory is in KiB.
type Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32

	MaxPasswordBytes int
}

// DefaultConfig is the cost used for new portal accounts.
func DefaultConfig() Config {
	return Config{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Argon2 hashes passwords into PHC strings and checks them back.
type Argon2 struct {
	cost Config
}

func NewArgon2(cfg Config) (*Argon2, error) {
	switch {
	case cfg.Memory < floor.Memory:
		return nil, fmt.Errorf("password memory must be >= %d KiB", floor.Memory)
	case cfg.Time < floor.Time:
		return nil, errors.New("password time must be >= 1")
	case cfg.Parallelism < floor.Parallelism:
		return nil, errors.New("password parallelism must be >= 1")
	case cfg.SaltLength < floor.SaltLength:
		return nil, errors.New("password salt length must be >= 16")
	case cfg.KeyLength < floor.KeyLength:
		return nil, errors.New("password key length must be >= 16")
	case cfg.MaxPasswordBytes < 0, cfg.MaxPasswordBytes > 0 && cfg.MaxPasswordBytes < minPasswordBytes:
		return nil, errors.New("password max length must be >= 10")
	}
	if cfg.MaxPasswordBytes == 0 {
		cfg.MaxPasswordBytes = DefaultMaxPasswordBytes
	}
	return &Argon2{cost: cfg}, nil
}

// Hash derives a key with a fresh salt at the configured cost. Passwords are
// hashed byte for byte, without Unicode normalisation.
func (a *Argon2) Hash(password string) (string, error) {
	if len(password) < minPasswordBytes {
		return "", ErrTooShort
	}
	if len(password) > a.cost.MaxPasswordBytes {
		return "", ErrTooLong
	}

	salt := make([]byte, a.cost.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	h := phc{
		memory:      a.cost.Memory,
		time:        a.cost.Time,
		parallelism: a.cost.Parallelism,
		salt:        salt,
	}
	h.key = h.derive(password, a.cost.KeyLength)
	return h.String(), nil
}

// Verify checks password against encoded in constant time. stale is set on a
// match when encoded was produced below the current cost and should be
// replaced. err is non-nil only for input the hasher cannot read.
func (a *Argon2) Verify(password, encoded string) (ok, stale bool, err error) {
	if len(password) > a.cost.MaxPasswordBytes {
		return false, false, ErrTooLong
	}
	h, err := parsePHC(encoded)
	if err != nil {
		return false, false, err
	}
	if subtle.ConstantTimeCompare(h.derive(password, uint32(len(h.key))), h.key) != 1 {
		return false, false, nil
	}
	return true, h.below(a.cost), nil
}

type phc struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

func (h phc) derive(password string, keyLen uint32) []byte {
	return argon2.IDKey([]byte(password), h.salt, h.time, h.memory, h.parallelism, keyLen)
}

func (h phc) params() string {
	return fmt.Sprintf("m=%d,t=%d,p=%d", h.memory, h.time, h.parallelism)
}

func (h phc) below(cost Config) bool {
	return h.memory < cost.Memory ||
		h.time < cost.Time ||
		h.parallelism < cost.Parallelism ||
		uint32(len(h.key)) != cost.KeyLength
}

// String renders $argon2id$v=19$m=..,t=..,p=..$salt$key with unpadded base64.
func (h phc) String() string {
	enc := base64.RawStdEncoding
	return fmt.Sprintf("$%s$v=%d$%s$%s$%s", algorithmID, argon2.Version, h.params(),
		enc.EncodeToString(h.salt), enc.EncodeToString(h.key))
}

func parsePHC(encoded string) (phc, error) {
	var h phc
	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[0] != "" || fields[1] != algorithmID {
		return h, errMalformed
	}
	if fields[2] != fmt.Sprintf("v=%d", argon2.Version) {
		return h, fmt.Errorf("%w: version %q", errMalformed, fields[2])
	}

	if _, err := fmt.Sscanf(fields[3], "m=%d,t=%d,p=%d", &h.memory, &h.time, &h.parallelism); err != nil || h.params() != fields[3] {
		return h, fmt.Errorf("%w: parameters %q", errMalformed, fields[3])
	}
	if h.memory < floor.Memory || h.time < floor.Time || h.parallelism < floor.Parallelism {
		return h, fmt.Errorf("%w: cost below floor", errMalformed)
	}

	var err error
	if h.salt, err = base64.RawStdEncoding.DecodeString(fields[4]); err != nil || uint32(len(h.salt)) < floor.SaltLength {
		return h, fmt.Errorf("%w: salt", errMalformed)
	}
	if h.key, err = base64.RawStdEncoding.DecodeString(fields[5]); err != nil || len(h.key) == 0 {
		return h, fmt.Errorf("%w: key", errMalformed)
	}
	return h, nil
}
