package refresh

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

var (
	// ErrConflict is returned by Rotate when the presented ciphertext is not
	// the owner's current, non-revoked, unexpired record. Callers treat it as
	// replay.
	ErrConflict = errors.New("refresh record conflict")
	// ErrUnavailable wraps storage backend failures.
	ErrUnavailable = errors.New("refresh store unavailable")
)

// Record is one persisted renewal credential. Only the ciphertext is stored.
type Record struct {
	ID         string
	OwnerID    string
	Ciphertext string
	Digest     string
	CreatedAt  time.Time
	ExpiresAt  time.Time
	Revoked    bool
	RevokedAt  *time.Time
}

// Digest returns the lookup key for a ciphertext (hex SHA-256).
func Digest(ciphertext string) string {
	sum := sha256.Sum256([]byte(ciphertext))
	return hex.EncodeToString(sum[:])
}

// Repository persists renewal records. Rotate must be a single atomic
// compare-and-swap: revoke the record matching (ownerID, oldDigest) only if it
// is still current, and insert next in the same operation.
type Repository interface {
	Insert(ctx context.Context, rec Record) error
	Rotate(ctx context.Context, ownerID, oldDigest string, next Record, now time.Time) error
	RevokeAll(ctx context.Context, ownerID string, now time.Time) (int64, error)
}
