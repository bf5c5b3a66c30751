package refresh

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	rotateStatusConflict  int64 = 0
	rotateStatusRotated   int64 = 1
	rotateStatusCollision int64 = 2
)

const insertRecordScript = `
local record_key = KEYS[1]
local owner_key = KEYS[2]
local exp_ms = tonumber(ARGV[5])
local ttl_ms = tonumber(ARGV[7])

if redis.call("EXISTS", record_key) == 1 then
  return 0
end

redis.call("HSET", record_key, "id", ARGV[1], "owner", ARGV[2], "ct", ARGV[3], "created", ARGV[4], "exp", ARGV[5], "rev", "0")
redis.call("PEXPIREAT", record_key, exp_ms)
redis.call("SADD", owner_key, ARGV[6])
if redis.call("PTTL", owner_key) < ttl_ms then
  redis.call("PEXPIRE", owner_key, ttl_ms)
end
return 1
`

var insertRecordLua = redis.NewScript(insertRecordScript)

const rotateRecordScript = `
local old_key = KEYS[1]
local new_key = KEYS[2]
local owner_key = KEYS[3]
local owner_id = ARGV[1]
local now_ms = tonumber(ARGV[2])

local current = redis.call("HMGET", old_key, "owner", "rev", "exp")
if not current[1] or current[1] ~= owner_id then
  return 0
end
if current[2] ~= "0" then
  return 0
end
if tonumber(current[3] or "0") <= now_ms then
  return 0
end
if redis.call("EXISTS", new_key) == 1 then
  return 2
end

redis.call("HSET", old_key, "rev", "1", "revat", ARGV[2])

local exp_ms = tonumber(ARGV[7])
local ttl_ms = exp_ms - now_ms
redis.call("HSET", new_key, "id", ARGV[3], "owner", owner_id, "ct", ARGV[4], "created", ARGV[5], "exp", ARGV[7], "rev", "0")
redis.call("PEXPIREAT", new_key, exp_ms)
redis.call("SADD", owner_key, ARGV[6])
if redis.call("PTTL", owner_key) < ttl_ms then
  redis.call("PEXPIRE", owner_key, ttl_ms)
end
return 1
`

var rotateRecordLua = redis.NewScript(rotateRecordScript)

const revokeAllScript = `
local owner_key = KEYS[1]
local record_prefix = ARGV[1]
local now_ms = ARGV[2]
local revoked = 0

local digests = redis.call("SMEMBERS", owner_key)
for _, digest in ipairs(digests) do
  local record_key = record_prefix .. digest
  local rev = redis.call("HGET", record_key, "rev")
  if not rev then
    redis.call("SREM", owner_key, digest)
  elseif rev == "0" then
    redis.call("HSET", record_key, "rev", "1", "revat", now_ms)
    revoked = revoked + 1
  end
end
return revoked
`

var revokeAllLua = redis.NewScript(revokeAllScript)

// RedisRepository keeps renewal records in Redis hashes keyed by ciphertext
// digest, with a per-owner index set. Revoked records stay until their natural
// expiry so a replayed ciphertext is still recognised as a conflict.
type RedisRepository struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisRepository returns a repository using keys under prefix (default "rr").
func NewRedisRepository(client redis.UniversalClient, prefix string) *RedisRepository {
	if prefix == "" {
		prefix = "rr"
	}
	return &RedisRepository{redis: client, prefix: prefix}
}

func (r *RedisRepository) recordPrefix() string {
	return r.prefix + ":r:"
}

func (r *RedisRepository) recordKey(digest string) string {
	return r.recordPrefix() + digest
}

func (r *RedisRepository) ownerKey(ownerID string) string {
	return r.prefix + ":o:" + ownerID
}

func (r *RedisRepository) Insert(ctx context.Context, rec Record) error {
	if rec.OwnerID == "" || rec.Digest == "" {
		return errors.New("refresh record requires owner and digest")
	}
	ttl := rec.ExpiresAt.Sub(rec.CreatedAt)
	if ttl <= 0 {
		return errors.New("refresh record already expired")
	}

	res, err := insertRecordLua.Run(
		ctx,
		r.redis,
		[]string{r.recordKey(rec.Digest), r.ownerKey(rec.OwnerID)},
		rec.ID,
		rec.OwnerID,
		rec.Ciphertext,
		rec.CreatedAt.UnixMilli(),
		rec.ExpiresAt.UnixMilli(),
		rec.Digest,
		ttl.Milliseconds(),
	).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if res != 1 {
		return fmt.Errorf("%w: digest collision", ErrUnavailable)
	}
	return nil
}

func (r *RedisRepository) Rotate(ctx context.Context, ownerID, oldDigest string, next Record, now time.Time) error {
	res, err := rotateRecordLua.Run(
		ctx,
		r.redis,
		[]string{r.recordKey(oldDigest), r.recordKey(next.Digest), r.ownerKey(ownerID)},
		ownerID,
		now.UnixMilli(),
		next.ID,
		next.Ciphertext,
		next.CreatedAt.UnixMilli(),
		next.Digest,
		next.ExpiresAt.UnixMilli(),
	).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	switch res {
	case rotateStatusRotated:
		return nil
	case rotateStatusConflict:
		return ErrConflict
	case rotateStatusCollision:
		return fmt.Errorf("%w: digest collision", ErrUnavailable)
	default:
		return fmt.Errorf("%w: unexpected rotate status %d", ErrUnavailable, res)
	}
}

func (r *RedisRepository) RevokeAll(ctx context.Context, ownerID string, now time.Time) (int64, error) {
	n, err := revokeAllLua.Run(
		ctx,
		r.redis,
		[]string{r.ownerKey(ownerID)},
		r.recordPrefix(),
		strconv.FormatInt(now.UnixMilli(), 10),
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n, nil
}

// Lookup returns the stored record for a ciphertext digest. Missing records
// return redis.Nil joined with ErrConflict.
func (r *RedisRepository) Lookup(ctx context.Context, digest string) (Record, error) {
	fields, err := r.redis.HGetAll(ctx, r.recordKey(digest)).Result()
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(fields) == 0 {
		return Record{}, errors.Join(redis.Nil, ErrConflict)
	}

	created, _ := strconv.ParseInt(fields["created"], 10, 64)
	exp, _ := strconv.ParseInt(fields["exp"], 10, 64)
	rec := Record{
		ID:         fields["id"],
		OwnerID:    fields["owner"],
		Ciphertext: fields["ct"],
		Digest:     digest,
		CreatedAt:  time.UnixMilli(created).UTC(),
		ExpiresAt:  time.UnixMilli(exp).UTC(),
		Revoked:    fields["rev"] == "1",
	}
	if at, err := strconv.ParseInt(fields["revat"], 10, 64); err == nil {
		t := time.UnixMilli(at).UTC()
		rec.RevokedAt = &t
	}
	return rec, nil
}
