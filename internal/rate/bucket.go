package rate

import (
	"context"
	"sync"
	"time"

	xrate "golang.org/x/time/rate"
)

type bucketEntry struct {
	limiter    *xrate.Limiter
	lastAccess time.Time
}

// Bucket is an in-process token bucket per key. A policy of Limit per Window
// refills one token every Window/Limit with a burst of Limit.
type Bucket struct {
	policy  Policy
	every   xrate.Limit
	idleTTL time.Duration
	now     func() time.Time

	mu      sync.Mutex
	entries map[string]*bucketEntry
}

// NewBucket creates an in-memory limiter. Idle keys are evicted after two
// full windows without traffic.
func NewBucket(policy Policy) (*Bucket, error) {
	if err := policy.validate(); err != nil {
		return nil, err
	}
	return &Bucket{
		policy:  policy,
		every:   xrate.Every(policy.Window / time.Duration(policy.Limit)),
		idleTTL: 2 * policy.Window,
		now:     time.Now,
		entries: make(map[string]*bucketEntry),
	}, nil
}

func (b *Bucket) Policy() Policy {
	return b.policy
}

// Allow takes one token for key. The error is always nil; the signature
// matches Window so both satisfy the same limiter interface.
func (b *Bucket) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	now := b.now()

	b.mu.Lock()
	entry, ok := b.entries[key]
	if !ok {
		entry = &bucketEntry{limiter: xrate.NewLimiter(b.every, b.policy.Limit)}
		b.entries[key] = entry
	}
	entry.lastAccess = now
	r := entry.limiter.ReserveN(now, 1)
	b.mu.Unlock()

	delay := r.DelayFrom(now)
	if delay == 0 {
		return true, 0, nil
	}
	r.CancelAt(now)
	return false, delay, nil
}

// Sweep drops keys idle for longer than the idle TTL and returns how many
// were removed.
func (b *Bucket) Sweep() int {
	cutoff := b.now().Add(-b.idleTTL)

	b.mu.Lock()
	defer b.mu.Unlock()

	removed := 0
	for key, entry := range b.entries {
		if entry.lastAccess.Before(cutoff) {
			delete(b.entries, key)
			removed++
		}
	}
	return removed
}

// Run sweeps idle keys every interval until ctx is done.
func (b *Bucket) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = b.policy.Window
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.Sweep()
		}
	}
}

// Len reports the number of tracked keys.
func (b *Bucket) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}
