package portalauth_test

import (
	"bytes"
	"context"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/portalauth"
	"github.com/MrEthical07/portalauth/account"
	"github.com/MrEthical07/portalauth/password"
	"github.com/MrEthical07/portalauth/permission"
	"github.com/MrEthical07/portalauth/refresh"
)

const testPassword = "correct-horse-battery"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Now().UTC().Truncate(time.Second)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type testEnv struct {
	engine *portalauth.Engine
	store  *account.MemoryStore
	repo   *refresh.RedisRepository
	clock  *fakeClock
	hasher *password.Argon2

	stopRedis func()
}

func testConfig() portalauth.Config {
	cfg := portalauth.DefaultConfig()
	cfg.JWT.AccessKey = bytes.Repeat([]byte("s"), 32)
	cfg.JWT.RefreshKey = bytes.Repeat([]byte("r"), 32)
	cfg.Refresh.EncryptionKey = bytes.Repeat([]byte{0x42}, 32)
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Audit.Enabled = false
	return cfg
}

type envOption func(*portalauth.Builder)

func withAudit(sink portalauth.AuditSink) envOption {
	return func(b *portalauth.Builder) {
		cfg := testConfig()
		cfg.Audit.Enabled = true
		cfg.Audit.BufferSize = 64
		cfg.Audit.DropIfFull = false
		b.WithConfig(cfg).WithAuditSink(sink)
	}
}

func newTestEnv(t testing.TB, opts ...envOption) *testEnv {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	var stopOnce sync.Once
	stopRedis := func() { stopOnce.Do(mr.Close) }

	clock := newFakeClock()
	store := account.NewMemoryStore()
	repo := refresh.NewRedisRepository(rdb, "rr")

	b := portalauth.New().
		WithConfig(testConfig()).
		WithAccountStore(store).
		WithRefreshRepository(repo).
		WithLogger(log.New(io.Discard, "", 0)).
		WithClock(clock.Now)
	for _, opt := range opts {
		opt(b)
	}

	engine, err := b.Build()
	if err != nil {
		rdb.Close()
		stopRedis()
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(func() {
		engine.Close()
		rdb.Close()
		stopRedis()
	})

	cfg := testConfig()
	hasher, err := password.NewArgon2(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		t.Fatalf("argon2: %v", err)
	}

	return &testEnv{
		engine: engine,
		store:  store,
		repo:   repo,
		clock:  clock,
		hasher: hasher,

		stopRedis: stopRedis,
	}
}

func (env *testEnv) seed(t testing.TB, id string, role permission.Role, status permission.Status, verified bool) portalauth.Account {
	t.Helper()
	hash, err := env.hasher.Hash(testPassword)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	acct := portalauth.Account{
		ID:           id,
		Email:        id + "@portal.test",
		PasswordHash: hash,
		Role:         role,
		Status:       status,
		Verified:     verified,
	}
	if role == permission.RoleEmployer {
		acct.CompanyProfileID = "cp-" + id
	}
	env.store.Put(acct)
	return acct
}

func (env *testEnv) login(t testing.TB, acct portalauth.Account) portalauth.LoginResult {
	t.Helper()
	res, err := env.engine.Login(context.Background(), acct.Email, testPassword)
	if err != nil {
		t.Fatalf("login %s: %v", acct.ID, err)
	}
	return res
}
