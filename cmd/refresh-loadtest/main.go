package main

import (
	"context"
	"crypto/rand"
	"errors"
	"flag"
	"fmt"
	mrand "math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/portalauth/refresh"
)

type recordState struct {
	owner      string
	ciphertext string
	mu         sync.Mutex
}

func main() {
	var (
		records     = flag.Int("records", 20000, "number of renewal records to seed")
		concurrency = flag.Int("concurrency", 128, "number of concurrent workers")
		ops         = flag.Int("ops", 100000, "rotations in the throughput phase")
		contenders  = flag.Int("contenders", 16, "workers racing on one ciphertext in the contention phase")
		rounds      = flag.Int("rounds", 500, "contention rounds")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "lt", "renewal key prefix")
	)
	flag.Parse()

	if *records <= 0 || *concurrency <= 0 || *ops <= 0 || *contenders <= 1 || *rounds <= 0 {
		fmt.Fprintln(os.Stderr, "records, concurrency, ops and rounds must be > 0; contenders must be > 1")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	key := make([]byte, refresh.KeySize)
	if _, err := rand.Read(key); err != nil {
		fmt.Fprintf(os.Stderr, "key generation failed: %v\n", err)
		os.Exit(1)
	}
	cipher, err := refresh.NewCipher(key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cipher: %v\n", err)
		os.Exit(1)
	}
	vault, err := refresh.NewVault(cipher, refresh.NewRedisRepository(client, *prefix))
	if err != nil {
		fmt.Fprintf(os.Stderr, "vault: %v\n", err)
		os.Exit(1)
	}

	states := make([]recordState, *records)
	fmt.Printf("seeding %d records...\n", *records)
	startSeed := time.Now()
	for i := range states {
		owner := fmt.Sprintf("owner-%d", i)
		ct, err := issue(ctx, vault, owner)
		if err != nil {
			fmt.Fprintf(os.Stderr, "issue failed: %v\n", err)
			os.Exit(1)
		}
		states[i] = recordState{owner: owner, ciphertext: ct}
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	rotateStats := runRotatePhase(ctx, vault, states, *ops, *concurrency)
	contention := runContentionPhase(ctx, vault, *contenders, *rounds)

	fmt.Println("---- results ----")
	printStats("rotate", rotateStats)
	fmt.Printf("contention: rounds=%d winners=%d conflicts=%d errors=%d violations=%d\n",
		*rounds, contention.winners, contention.conflicts, contention.errors, contention.violations)
	if contention.violations > 0 {
		os.Exit(1)
	}
}

func issue(ctx context.Context, vault *refresh.Vault, owner string) (string, error) {
	id := uuid.NewString()
	return vault.Issue(ctx, owner, id, "renewal:"+id, time.Now().Add(24*time.Hour))
}

func rotate(ctx context.Context, vault *refresh.Vault, owner, old string) (string, error) {
	id := uuid.NewString()
	return vault.Rotate(ctx, owner, old, id, "renewal:"+id, time.Now().Add(24*time.Hour))
}

// runRotatePhase rotates random records. Each record is rotated by at most
// one worker at a time, so every failure is a real error.
func runRotatePhase(ctx context.Context, vault *refresh.Vault, states []recordState, ops, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := mrand.New(mrand.NewSource(time.Now().UnixNano() + int64(worker)*6151))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				state := &states[r.Intn(len(states))]

				state.mu.Lock()
				t0 := time.Now()
				next, err := rotate(ctx, vault, state.owner, state.ciphertext)
				d := time.Since(t0)
				if err == nil {
					state.ciphertext = next
				} else {
					atomic.AddInt64(&failures, 1)
				}
				state.mu.Unlock()

				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type contentionStats struct {
	winners    int
	conflicts  int
	errors     int
	violations int
}

// runContentionPhase races contenders on the same ciphertext each round.
// Exactly one must win; any other count is a violation.
func runContentionPhase(ctx context.Context, vault *refresh.Vault, contenders, rounds int) contentionStats {
	var out contentionStats
	for round := 0; round < rounds; round++ {
		owner := fmt.Sprintf("race-%d", round)
		ct, err := issue(ctx, vault, owner)
		if err != nil {
			out.errors++
			continue
		}

		var (
			wg        sync.WaitGroup
			winners   int64
			conflicts int64
			errs      int64
			start     = make(chan struct{})
		)
		for c := 0; c < contenders; c++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				_, err := rotate(ctx, vault, owner, ct)
				switch {
				case err == nil:
					atomic.AddInt64(&winners, 1)
				case errors.Is(err, refresh.ErrConflict):
					atomic.AddInt64(&conflicts, 1)
				default:
					atomic.AddInt64(&errs, 1)
				}
			}()
		}
		close(start)
		wg.Wait()

		out.winners += int(winners)
		out.conflicts += int(conflicts)
		out.errors += int(errs)
		if winners != 1 {
			out.violations++
		}
	}
	return out
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
