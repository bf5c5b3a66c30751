package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newWindowTest(t *testing.T, policy Policy) (*Window, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})

	w, err := NewWindow(rdb, policy)
	if err != nil {
		t.Fatalf("new window: %v", err)
	}
	return w, mr
}

func TestWindowSixthHitRejected(t *testing.T) {
	w, _ := newWindowTest(t, Policy{Name: "auth", Limit: 5, Window: 15 * time.Minute})
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		ok, _, err := w.Allow(ctx, "203.0.113.7")
		if err != nil || !ok {
			t.Fatalf("hit %d: ok=%v err=%v", i, ok, err)
		}
	}

	ok, retry, err := w.Allow(ctx, "203.0.113.7")
	if err != nil {
		t.Fatalf("sixth hit: %v", err)
	}
	if ok {
		t.Fatal("sixth hit allowed")
	}
	if retry <= 0 || retry > 15*time.Minute {
		t.Fatalf("retry-after = %v", retry)
	}

	ok, _, err = w.Allow(ctx, "198.51.100.1")
	if err != nil || !ok {
		t.Fatalf("other client blocked: ok=%v err=%v", ok, err)
	}
}

func TestWindowResetsAfterExpiry(t *testing.T) {
	w, mr := newWindowTest(t, Policy{Name: "auth", Limit: 1, Window: time.Minute})
	ctx := context.Background()

	if ok, _, _ := w.Allow(ctx, "k"); !ok {
		t.Fatal("first hit rejected")
	}
	if ok, _, _ := w.Allow(ctx, "k"); ok {
		t.Fatal("second hit allowed")
	}

	mr.FastForward(time.Minute + time.Second)
	if ok, _, err := w.Allow(ctx, "k"); !ok || err != nil {
		t.Fatalf("hit after window: ok=%v err=%v", ok, err)
	}

	if ok, _, _ := w.Allow(ctx, "k"); ok {
		t.Fatal("limit not re-applied in new window")
	}
	if err := w.Reset(ctx, "k"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if ok, _, _ := w.Allow(ctx, "k"); !ok {
		t.Fatal("hit after reset rejected")
	}
}

func TestWindowCounterAlwaysExpires(t *testing.T) {
	w, mr := newWindowTest(t, Policy{Name: "auth", Limit: 5, Window: 15 * time.Minute})
	ctx := context.Background()

	if _, _, err := w.Allow(ctx, "203.0.113.7"); err != nil {
		t.Fatalf("allow: %v", err)
	}
	if ttl := mr.TTL("adm:auth:203.0.113.7"); ttl <= 0 || ttl > 15*time.Minute {
		t.Fatalf("ttl after first hit = %v", ttl)
	}

	// A counter stranded without an expiry would block its key forever.
	if err := mr.Set("adm:auth:198.51.100.2", "9"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	ok, retry, err := w.Allow(ctx, "198.51.100.2")
	if err != nil || ok {
		t.Fatalf("stranded counter: ok=%v err=%v", ok, err)
	}
	if ttl := mr.TTL("adm:auth:198.51.100.2"); ttl <= 0 {
		t.Fatal("stranded counter was not given an expiry")
	}
	if retry != 15*time.Minute {
		t.Fatalf("retry-after = %v, want full window", retry)
	}

	mr.FastForward(15*time.Minute + time.Second)
	if ok, _, err := w.Allow(ctx, "198.51.100.2"); err != nil || !ok {
		t.Fatalf("after expiry: ok=%v err=%v", ok, err)
	}
}

func TestWindowRetryAfterIsTimeLeft(t *testing.T) {
	w, mr := newWindowTest(t, Policy{Name: "admin", Limit: 1, Window: 10 * time.Minute})
	ctx := context.Background()

	if ok, _, _ := w.Allow(ctx, "k"); !ok {
		t.Fatal("first hit rejected")
	}
	mr.FastForward(4 * time.Minute)
	ok, retry, err := w.Allow(ctx, "k")
	if err != nil || ok {
		t.Fatalf("second hit: ok=%v err=%v", ok, err)
	}
	if retry != 6*time.Minute {
		t.Fatalf("retry-after = %v, want 6m", retry)
	}
	if ttl := mr.TTL("adm:admin:k"); ttl != 6*time.Minute {
		t.Fatalf("later hits must not extend the window: ttl = %v", ttl)
	}
}

func TestWindowRedisDown(t *testing.T) {
	w, mr := newWindowTest(t, Policy{Name: "auth", Limit: 5, Window: time.Minute})
	mr.SetError("boom")

	if _, _, err := w.Allow(context.Background(), "k"); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("err = %v, want ErrRedisUnavailable", err)
	}
}

func TestPolicyValidation(t *testing.T) {
	for _, p := range []Policy{
		{Limit: 1, Window: time.Second},
		{Name: "x", Window: time.Second},
		{Name: "x", Limit: 1},
	} {
		if _, err := NewBucket(p); err == nil {
			t.Fatalf("expected error for %+v", p)
		}
	}
	if _, err := NewWindow(nil, Policy{Name: "x", Limit: 1, Window: time.Second}); err == nil {
		t.Fatal("expected nil client error")
	}
}

func TestBucketBurstThenRefill(t *testing.T) {
	b, err := NewBucket(Policy{Name: "routine", Limit: 5, Window: 15 * time.Minute})
	if err != nil {
		t.Fatalf("new bucket: %v", err)
	}
	now := time.Unix(1_800_000_000, 0)
	b.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		if ok, _, _ := b.Allow(ctx, "client"); !ok {
			t.Fatalf("hit %d rejected", i)
		}
	}
	ok, retry, _ := b.Allow(ctx, "client")
	if ok {
		t.Fatal("sixth hit allowed")
	}
	if retry <= 0 || retry > 3*time.Minute {
		t.Fatalf("retry-after = %v, want (0, 3m]", retry)
	}

	now = now.Add(3 * time.Minute)
	if ok, _, _ := b.Allow(ctx, "client"); !ok {
		t.Fatal("token not refilled after one interval")
	}
	if ok, _, _ := b.Allow(ctx, "client"); ok {
		t.Fatal("more than one token refilled")
	}
}

func TestBucketSweep(t *testing.T) {
	b, err := NewBucket(Policy{Name: "routine", Limit: 10, Window: time.Minute})
	if err != nil {
		t.Fatalf("new bucket: %v", err)
	}
	now := time.Unix(1_800_000_000, 0)
	b.now = func() time.Time { return now }

	_, _, _ = b.Allow(context.Background(), "a")
	now = now.Add(90 * time.Second)
	_, _, _ = b.Allow(context.Background(), "b")
	now = now.Add(60 * time.Second)

	if removed := b.Sweep(); removed != 1 {
		t.Fatalf("swept %d keys, want 1", removed)
	}
	if b.Len() != 1 {
		t.Fatalf("tracked keys = %d, want 1", b.Len())
	}
}
