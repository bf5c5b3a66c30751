package password

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ErrUnsupportedHash is returned when a stored hash is neither Argon2id PHC
// nor bcrypt.
var ErrUnsupportedHash = errors.New("unsupported password hash")

// Verifier checks passwords against Argon2id hashes and legacy bcrypt hashes
// imported from the previous portal backend. New hashes are always Argon2id.
type Verifier struct {
	argon *Argon2
	dummy string
}

// NewVerifier wraps an Argon2 hasher. It precomputes a dummy hash used to
// equalize timing when the account does not exist.
func NewVerifier(a *Argon2) (*Verifier, error) {
	if a == nil {
		return nil, errors.New("argon2 hasher is nil")
	}
	dummy, err := a.Hash("dummy-password-for-timing")
	if err != nil {
		return nil, err
	}
	return &Verifier{argon: a, dummy: dummy}, nil
}

func (v *Verifier) Hash(password string) (string, error) {
	return v.argon.Hash(password)
}

// Verify reports whether password matches encodedHash and whether the hash
// should be replaced with a current Argon2id hash after a successful login.
func (v *Verifier) Verify(password, encodedHash string) (ok bool, upgrade bool, err error) {
	if isBcrypt(encodedHash) {
		err := bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password))
		switch {
		case err == nil:
			return true, true, nil
		case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
			return false, false, nil
		default:
			return false, false, ErrUnsupportedHash
		}
	}

	if !strings.HasPrefix(encodedHash, "$"+algorithmID+"$") {
		return false, false, ErrUnsupportedHash
	}

	ok, upgrade, err = v.argon.Verify(password, encodedHash)
	if errors.Is(err, errMalformed) {
		return false, false, ErrUnsupportedHash
	}
	return ok, upgrade, err
}

// Burn runs one Argon2id verification against the dummy hash and discards
// the result.
func (v *Verifier) Burn(password string) {
	_, _, _ = v.argon.Verify(password, v.dummy)
}

func isBcrypt(h string) bool {
	return strings.HasPrefix(h, "$2a$") || strings.HasPrefix(h, "$2b$") || strings.HasPrefix(h, "$2y$")
}
