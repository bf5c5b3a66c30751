package refresh

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	// KeySize is the AES-256 key length in bytes.
	KeySize = 32

	ivSize  = 12
	tagSize = 16
)

// ErrKeyInvalid is returned at construction when the key material is missing
// or has the wrong length. It is a startup error, never a per-request one.
var ErrKeyInvalid = errors.New("refresh encryption key must be 32 bytes")

// ParseKey decodes a hex-encoded 32-byte key.
func ParseKey(encoded string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, ErrKeyInvalid
	}
	key, err := hex.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyInvalid, err)
	}
	if len(key) != KeySize {
		return nil, ErrKeyInvalid
	}
	return key, nil
}

// Cipher encrypts renewal credentials with AES-256-GCM. Ciphertexts are
// encoded as hex(iv):hex(tag):hex(ciphertext).
type Cipher struct {
	aead cipher.AEAD
	rand io.Reader
}

// NewCipher builds a Cipher from a 32-byte key. The key is copied.
func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != KeySize {
		return nil, ErrKeyInvalid
	}
	block, err := aes.NewCipher(append([]byte(nil), key...))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyInvalid, err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Cipher{aead: aead, rand: rand.Reader}, nil
}

// Encrypt seals plaintext under a fresh random IV.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	iv := make([]byte, ivSize)
	if _, err := io.ReadFull(c.rand, iv); err != nil {
		return "", fmt.Errorf("read iv: %w", err)
	}

	sealed := c.aead.Seal(nil, iv, []byte(plaintext), nil)
	ct, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]

	var b strings.Builder
	b.Grow(2*(ivSize+tagSize+len(ct)) + 2)
	b.WriteString(hex.EncodeToString(iv))
	b.WriteByte(':')
	b.WriteString(hex.EncodeToString(tag))
	b.WriteByte(':')
	b.WriteString(hex.EncodeToString(ct))
	return b.String(), nil
}

// Decrypt opens a ciphertext produced by Encrypt. It reports false for any
// malformed input or authentication failure and never panics. Only the
// lower-case hex Encrypt emits is accepted, so each credential has exactly
// one spelling and one digest.
func (c *Cipher) Decrypt(ciphertext string) (string, bool) {
	parts := strings.Split(ciphertext, ":")
	if len(parts) != 3 {
		return "", false
	}

	iv, ok := canonicalHex(parts[0])
	if !ok || len(iv) != ivSize {
		return "", false
	}
	tag, ok := canonicalHex(parts[1])
	if !ok || len(tag) != tagSize {
		return "", false
	}
	ct, ok := canonicalHex(parts[2])
	if !ok {
		return "", false
	}

	sealed := make([]byte, 0, len(ct)+tagSize)
	sealed = append(sealed, ct...)
	sealed = append(sealed, tag...)

	plain, err := c.aead.Open(nil, iv, sealed, nil)
	if err != nil {
		return "", false
	}
	return string(plain), true
}

func canonicalHex(s string) ([]byte, bool) {
	b, err := hex.DecodeString(s)
	if err != nil || hex.EncodeToString(b) != s {
		return nil, false
	}
	return b, true
}
