package refresh

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of *pgxpool.Pool used by PostgresRepository.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const createRecordsTable = `
CREATE TABLE IF NOT EXISTS refresh_records (
	id          TEXT PRIMARY KEY,
	owner_id    TEXT NOT NULL,
	ciphertext  TEXT NOT NULL,
	digest      CHAR(64) NOT NULL UNIQUE,
	created_at  TIMESTAMPTZ NOT NULL,
	expires_at  TIMESTAMPTZ NOT NULL,
	revoked     BOOLEAN NOT NULL DEFAULT FALSE,
	revoked_at  TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS refresh_records_owner_live_idx
	ON refresh_records (owner_id) WHERE NOT revoked;
`

// The UPDATE and INSERT run as one statement. A concurrent rotation of the
// same row blocks on the row lock, re-evaluates "NOT revoked" and matches
// nothing, so the INSERT produces no row.
const rotateRecordSQL = `
WITH revoked AS (
	UPDATE refresh_records
	   SET revoked = TRUE, revoked_at = $3
	 WHERE owner_id = $1
	   AND digest = $2
	   AND NOT revoked
	   AND expires_at > $3
	RETURNING id
)
INSERT INTO refresh_records (id, owner_id, ciphertext, digest, created_at, expires_at, revoked)
SELECT $4::text, $1::text, $5::text, $6::text, $7::timestamptz, $8::timestamptz, FALSE FROM revoked
RETURNING id
`

// PostgresRepository stores renewal records in the refresh_records table.
type PostgresRepository struct {
	db DB
}

func NewPostgresRepository(db DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Migrate creates the refresh_records table and its partial index.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, createRecordsTable); err != nil {
		return fmt.Errorf("migrate refresh_records: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Insert(ctx context.Context, rec Record) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO refresh_records (id, owner_id, ciphertext, digest, created_at, expires_at, revoked)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE)`,
		rec.ID, rec.OwnerID, rec.Ciphertext, rec.Digest, rec.CreatedAt, rec.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (r *PostgresRepository) Rotate(ctx context.Context, ownerID, oldDigest string, next Record, now time.Time) error {
	var id string
	err := r.db.QueryRow(ctx, rotateRecordSQL,
		ownerID, oldDigest, now,
		next.ID, next.Ciphertext, next.Digest, next.CreatedAt, next.ExpiresAt,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrConflict
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (r *PostgresRepository) RevokeAll(ctx context.Context, ownerID string, now time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE refresh_records
		   SET revoked = TRUE, revoked_at = $2
		 WHERE owner_id = $1 AND NOT revoked`,
		ownerID, now,
	)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return tag.RowsAffected(), nil
}

// PurgeExpired deletes records that expired before cutoff. Revoked records
// are kept until expiry so replays keep resolving to ErrConflict.
func (r *PostgresRepository) PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM refresh_records WHERE expires_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return tag.RowsAffected(), nil
}
