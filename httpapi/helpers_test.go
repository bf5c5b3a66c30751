package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/portalauth"
	"github.com/MrEthical07/portalauth/account"
	"github.com/MrEthical07/portalauth/internal/rate"
	"github.com/MrEthical07/portalauth/password"
	"github.com/MrEthical07/portalauth/permission"
	"github.com/MrEthical07/portalauth/refresh"
)

const testPassword = "correct-horse-battery"

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type apiEnv struct {
	server *httptest.Server
	engine *portalauth.Engine
	store  *account.MemoryStore
	redis  *miniredis.Miniredis
	clock  *clock
	hasher *password.Argon2
}

func newAPIEnv(t *testing.T, opts ...func(*Config)) *apiEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := portalauth.DefaultConfig()
	cfg.JWT.AccessKey = bytes.Repeat([]byte("k"), 32)
	cfg.JWT.RefreshKey = bytes.Repeat([]byte("q"), 32)
	cfg.Refresh.EncryptionKey = bytes.Repeat([]byte{0x5a}, 32)
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Audit.Enabled = false

	clk := &clock{now: time.Now().UTC().Truncate(time.Second)}
	store := account.NewMemoryStore()

	engine, err := portalauth.New().
		WithConfig(cfg).
		WithAccountStore(store).
		WithRefreshRepository(refresh.NewRedisRepository(rdb, "api")).
		WithLogger(log.New(io.Discard, "", 0)).
		WithClock(clk.Now).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	authLimit, err := rate.NewWindow(rdb, rate.Policy{Name: "auth", Limit: 5, Window: 15 * time.Minute})
	if err != nil {
		t.Fatalf("auth window: %v", err)
	}
	adminLimit, err := rate.NewWindow(rdb, rate.Policy{Name: "admin", Limit: 20, Window: time.Minute})
	if err != nil {
		t.Fatalf("admin window: %v", err)
	}
	routine, err := rate.NewBucket(rate.Policy{Name: "routine", Limit: 120, Window: time.Minute})
	if err != nil {
		t.Fatalf("routine bucket: %v", err)
	}

	apiCfg := Config{
		Limiters: Limiters{Auth: authLimit, Routine: routine, Admin: adminLimit},
		Metrics:  http.NotFoundHandler(),
	}
	for _, opt := range opts {
		opt(&apiCfg)
	}
	srv, err := NewServer(engine, apiCfg)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

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

	return &apiEnv{server: ts, engine: engine, store: store, redis: mr, clock: clk, hasher: hasher}
}

func (env *apiEnv) seed(t *testing.T, id string, role permission.Role, status permission.Status, verified bool) string {
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
	return acct.Email
}

func (env *apiEnv) client(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar.New: %v", err)
	}
	return &http.Client{Jar: jar}
}

func (env *apiEnv) do(t *testing.T, c *http.Client, method, path string, body any) *http.Response {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, env.server.URL+path, rdr)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (env *apiEnv) doWithHeader(t *testing.T, c *http.Client, method, path string, body any, key, value string) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, env.server.URL+path, bytes.NewReader(b))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(key, value)
	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (env *apiEnv) login(t *testing.T, c *http.Client, email string) *http.Response {
	t.Helper()
	return env.do(t, c, http.MethodPost, "/login", map[string]string{"email": email, "password": testPassword})
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return out
}

func cookieValue(resp *http.Response, name string) (*http.Cookie, bool) {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}
