package middleware

import (
	"context"
	"log"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/MrEthical07/portalauth"
)

// Limiter admits or rejects one hit for key. When rejected, retryAfter is
// how long until the key is admitted again.
type Limiter interface {
	Allow(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error)
}

// KeyFunc derives the limiter key for a request.
type KeyFunc func(r *http.Request) string

// Admit rejects requests over limiter's budget with 429 and Retry-After.
// A limiter error rejects with 503. engine may be nil; it is only used for
// the rejection counter.
func Admit(engine *portalauth.Engine, limiter Limiter, key KeyFunc) func(http.Handler) http.Handler {
	if key == nil {
		key = ClientIP
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil {
				next.ServeHTTP(w, r)
				return
			}

			k := key(r)
			allowed, retryAfter, err := limiter.Allow(r.Context(), k)
			if err != nil {
				log.Printf("admission: limiter error key=%s: %v", k, err)
				writeError(w, http.StatusServiceUnavailable, "unavailable")
				return
			}
			if !allowed {
				engine.RecordMetric(portalauth.MetricAdmissionRejected)
				w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(retryAfter)))
				writeError(w, http.StatusTooManyRequests, "rate_limited")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func retryAfterSeconds(d time.Duration) int {
	s := int(math.Ceil(d.Seconds()))
	if s < 1 {
		return 1
	}
	return s
}

// SubjectKey keys on the authenticated subject attached by Gate, falling
// back to fallback (ClientIP when nil). Use it behind Gate.
func SubjectKey(fallback KeyFunc) KeyFunc {
	if fallback == nil {
		fallback = ClientIP
	}
	return func(r *http.Request) string {
		if res, ok := AuthResultFromContext(r.Context()); ok && res.UserID != "" {
			return "sub:" + res.UserID
		}
		return fallback(r)
	}
}
