package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/portalauth"
	"github.com/MrEthical07/portalauth/account"
	"github.com/MrEthical07/portalauth/httpapi"
	"github.com/MrEthical07/portalauth/internal/config"
	"github.com/MrEthical07/portalauth/internal/rate"
	"github.com/MrEthical07/portalauth/middleware"
	"github.com/MrEthical07/portalauth/refresh"
)

const purgeInterval = time.Hour

func main() {
	configPath := flag.String("config", os.Getenv("PORTAL_CONFIG"), "optional YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connection failed: %v", err)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("db ping failed: %v", err)
	}

	gdb, err := account.Open(pool)
	if err != nil {
		log.Fatalf("gorm open failed: %v", err)
	}
	accounts := account.NewGormStore(gdb)
	if err := accounts.Migrate(ctx); err != nil {
		log.Fatalf("account migration failed: %v", err)
	}

	var rdb redis.UniversalClient
	if cfg.RedisAddr != "" {
		rdb = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{cfg.RedisAddr},
			Password: cfg.RedisPassword,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("redis ping failed: %v", err)
		}
	}

	var renewals refresh.Repository
	switch cfg.RenewalBackend {
	case config.RenewalBackendRedis:
		renewals = refresh.NewRedisRepository(rdb, "portal:rr")
	default:
		pg := refresh.NewPostgresRepository(pool)
		if err := pg.Migrate(ctx); err != nil {
			log.Fatalf("refresh migration failed: %v", err)
		}
		go purgeExpired(ctx, pg)
		renewals = pg
	}

	engine, err := portalauth.New().
		WithConfig(cfg.Engine).
		WithAccountStore(accounts).
		WithRefreshRepository(renewals).
		WithAuditSink(portalauth.NewJSONWriterSink(os.Stdout)).
		WithLogger(log.Default()).
		Build()
	if err != nil {
		log.Fatalf("engine: %v", err)
	}
	defer engine.Close()

	report := engine.SecurityReport()
	log.Printf("security posture: alg=%s access_ttl=%s refresh_ttl=%s status_staleness=%s live_status=%t audit=%t",
		report.SigningAlgorithm, report.AccessTTL, report.RefreshTTL, report.StatusStaleness, report.LiveStatusChecks, report.AuditActive)

	limiters, err := buildLimiters(ctx, cfg.Limits, rdb)
	if err != nil {
		log.Fatalf("limiters: %v", err)
	}

	server, err := httpapi.NewServer(engine, httpapi.Config{
		Limiters:       limiters,
		Cookies:        httpapi.CookieConfig{Secure: cfg.CookieSecure, Domain: cfg.CookieDomain},
		AccessLog:      cfg.AccessLog,
		TrustedProxies: cfg.TrustedProxies,
	})
	if err != nil {
		log.Fatalf("http server: %v", err)
	}

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("portalauth listening on %s (renewals in %s)", cfg.HTTPAddr, cfg.RenewalBackend)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

// buildLimiters uses Redis fixed windows for the auth and admin policies
// when Redis is configured, so limits hold across replicas. The routine
// policy is always an in-process bucket.
func buildLimiters(ctx context.Context, limits config.Limits, rdb redis.UniversalClient) (httpapi.Limiters, error) {
	routine, err := rate.NewBucket(limits.Routine)
	if err != nil {
		return httpapi.Limiters{}, err
	}
	go routine.Run(ctx, limits.Routine.Window)

	var auth, admin middleware.Limiter
	if rdb != nil {
		if auth, err = rate.NewWindow(rdb, limits.Auth); err != nil {
			return httpapi.Limiters{}, err
		}
		if admin, err = rate.NewWindow(rdb, limits.Admin); err != nil {
			return httpapi.Limiters{}, err
		}
	} else {
		log.Printf("REDIS_ADDR not set; auth and admin limits are per process")
		authBucket, err := rate.NewBucket(limits.Auth)
		if err != nil {
			return httpapi.Limiters{}, err
		}
		adminBucket, err := rate.NewBucket(limits.Admin)
		if err != nil {
			return httpapi.Limiters{}, err
		}
		go authBucket.Run(ctx, limits.Auth.Window)
		go adminBucket.Run(ctx, limits.Admin.Window)
		auth, admin = authBucket, adminBucket
	}

	return httpapi.Limiters{Auth: auth, Routine: routine, Admin: admin}, nil
}

func purgeExpired(ctx context.Context, pg *refresh.PostgresRepository) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := pg.PurgeExpired(ctx, time.Now().Add(-24*time.Hour))
			if err != nil {
				log.Printf("refresh purge failed: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("refresh purge removed %d records", n)
			}
		}
	}
}
