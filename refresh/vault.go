package refresh

import (
	"context"
	"errors"
	"time"
)

// Vault is the renewal store: it encrypts renewal credentials and persists
// them through a Repository.
type Vault struct {
	cipher *Cipher
	repo   Repository
	now    func() time.Time
}

// NewVault wires a cipher to a repository.
func NewVault(c *Cipher, repo Repository) (*Vault, error) {
	if c == nil {
		return nil, ErrKeyInvalid
	}
	if repo == nil {
		return nil, errors.New("refresh repository is nil")
	}
	return &Vault{cipher: c, repo: repo, now: time.Now}, nil
}

// WithClock replaces the clock used for record timestamps.
func (v *Vault) WithClock(now func() time.Time) *Vault {
	if now != nil {
		v.now = now
	}
	return v
}

// Decrypt returns false for anything that is not an intact ciphertext under
// the process key.
func (v *Vault) Decrypt(ciphertext string) (string, bool) {
	return v.cipher.Decrypt(ciphertext)
}

// Issue encrypts plaintext and stores it as a new record for ownerID.
func (v *Vault) Issue(ctx context.Context, ownerID, tokenID, plaintext string, expiresAt time.Time) (string, error) {
	ciphertext, err := v.cipher.Encrypt(plaintext)
	if err != nil {
		return "", err
	}

	rec := v.record(ownerID, tokenID, ciphertext, expiresAt)
	if err := v.repo.Insert(ctx, rec); err != nil {
		return "", err
	}
	return ciphertext, nil
}

// Rotate replaces the record holding oldCiphertext with a freshly encrypted
// newPlaintext. It returns ErrConflict if oldCiphertext was already rotated,
// revoked, or has expired.
func (v *Vault) Rotate(
	ctx context.Context,
	ownerID, oldCiphertext, tokenID, newPlaintext string,
	expiresAt time.Time,
) (string, error) {
	ciphertext, err := v.cipher.Encrypt(newPlaintext)
	if err != nil {
		return "", err
	}

	next := v.record(ownerID, tokenID, ciphertext, expiresAt)
	if err := v.repo.Rotate(ctx, ownerID, Digest(oldCiphertext), next, next.CreatedAt); err != nil {
		return "", err
	}
	return ciphertext, nil
}

// RevokeAll marks every live record of ownerID revoked and reports how many
// were affected.
func (v *Vault) RevokeAll(ctx context.Context, ownerID string) (int64, error) {
	return v.repo.RevokeAll(ctx, ownerID, v.now())
}

func (v *Vault) record(ownerID, tokenID, ciphertext string, expiresAt time.Time) Record {
	return Record{
		ID:         tokenID,
		OwnerID:    ownerID,
		Ciphertext: ciphertext,
		Digest:     Digest(ciphertext),
		CreatedAt:  v.now().UTC(),
		ExpiresAt:  expiresAt.UTC(),
	}
}
