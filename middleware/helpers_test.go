package middleware

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
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

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// flakyStore fails GetAccountByID when down is set.
type flakyStore struct {
	*account.MemoryStore
	mu   sync.Mutex
	down bool
}

func (s *flakyStore) setDown(v bool) {
	s.mu.Lock()
	s.down = v
	s.mu.Unlock()
}

func (s *flakyStore) GetAccountByID(ctx context.Context, id string) (portalauth.Account, error) {
	s.mu.Lock()
	down := s.down
	s.mu.Unlock()
	if down {
		return portalauth.Account{}, errors.New("connection refused")
	}
	return s.MemoryStore.GetAccountByID(ctx, id)
}

type gateEnv struct {
	engine *portalauth.Engine
	store  *flakyStore
	clock  *testClock
	hasher *password.Argon2
}

func newGateEnv(t *testing.T, staleness time.Duration) *gateEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := portalauth.DefaultConfig()
	cfg.JWT.AccessKey = bytes.Repeat([]byte("a"), 32)
	cfg.JWT.RefreshKey = bytes.Repeat([]byte("b"), 32)
	cfg.Refresh.EncryptionKey = bytes.Repeat([]byte{0x17}, 32)
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Audit.Enabled = false
	cfg.Gate.StatusStaleness = staleness

	clock := &testClock{now: time.Now().UTC().Truncate(time.Second)}
	store := &flakyStore{MemoryStore: account.NewMemoryStore()}

	engine, err := portalauth.New().
		WithConfig(cfg).
		WithAccountStore(store).
		WithRefreshRepository(refresh.NewRedisRepository(rdb, "mw")).
		WithLogger(log.New(io.Discard, "", 0)).
		WithClock(clock.Now).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

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

	return &gateEnv{engine: engine, store: store, clock: clock, hasher: hasher}
}

func (env *gateEnv) seedAndLogin(t *testing.T, id string, role permission.Role, status permission.Status, verified bool) string {
	t.Helper()
	hash, err := env.hasher.Hash(testPassword)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	env.store.Put(portalauth.Account{
		ID:           id,
		Email:        id + "@portal.test",
		PasswordHash: hash,
		Role:         role,
		Status:       status,
		Verified:     verified,
	})
	res, err := env.engine.Login(context.Background(), id+"@portal.test", testPassword)
	if err != nil {
		t.Fatalf("login %s: %v", id, err)
	}
	return res.AccessToken
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if res, ok := AuthResultFromContext(r.Context()); ok {
			w.Header().Set("X-Subject", res.UserID)
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func serve(h http.Handler, r *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec
}
