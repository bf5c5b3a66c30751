package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Policy is a limit of Limit hits per Window for one named admission class.
type Policy struct {
	Name   string
	Limit  int
	Window time.Duration
}

func (p Policy) validate() error {
	if p.Name == "" {
		return fmt.Errorf("rate policy name is empty")
	}
	if p.Limit <= 0 {
		return fmt.Errorf("rate policy %q: limit must be positive", p.Name)
	}
	if p.Window <= 0 {
		return fmt.Errorf("rate policy %q: window must be positive", p.Name)
	}
	return nil
}

// hitScript counts one hit and returns {count, pttl}. The expiry is set on
// the first hit, and again on any counter found without one, in the same
// atomic step as the increment.
const hitScript = `
local count = redis.call("INCR", KEYS[1])
local ttl = redis.call("PTTL", KEYS[1])
if count == 1 or ttl < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {count, ttl}
`

var hitLua = redis.NewScript(hitScript)

// Window is a Redis fixed-window counter shared by every process that points
// at the same Redis.
type Window struct {
	redis  redis.UniversalClient
	policy Policy
}

// NewWindow creates a fixed-window limiter for policy.
func NewWindow(client redis.UniversalClient, policy Policy) (*Window, error) {
	if client == nil {
		return nil, fmt.Errorf("rate policy %q: redis client is nil", policy.Name)
	}
	if err := policy.validate(); err != nil {
		return nil, err
	}
	return &Window{redis: client, policy: policy}, nil
}

func (w *Window) Policy() Policy {
	return w.policy
}

// Allow counts one hit for key. When the count exceeds the limit it reports
// false and the time left in the current window.
func (w *Window) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	count, ttl, err := w.hit(ctx, w.key(key))
	if err != nil {
		return false, 0, err
	}
	if count <= int64(w.policy.Limit) {
		return true, 0, nil
	}
	if ttl <= 0 {
		ttl = w.policy.Window
	}
	return false, ttl, nil
}

// Reset clears the counter for key.
func (w *Window) Reset(ctx context.Context, key string) error {
	if err := w.redis.Del(ctx, w.key(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (w *Window) key(key string) string {
	return "adm:" + w.policy.Name + ":" + key
}

func (w *Window) hit(ctx context.Context, key string) (int64, time.Duration, error) {
	res, err := hitLua.Run(ctx, w.redis, []string{key}, w.policy.Window.Milliseconds()).Int64Slice()
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(res) != 2 {
		return 0, 0, fmt.Errorf("%w: unexpected script reply %v", ErrRedisUnavailable, res)
	}
	return res[0], time.Duration(res[1]) * time.Millisecond, nil
}
