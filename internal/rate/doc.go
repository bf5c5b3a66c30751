// Package rate provides the admission-control primitives used in front of the
// credential-issuing and administrative endpoints.
//
// # Limiters
//
//   - [Window]: Redis fixed window (INCR + EXPIRE on first hit), keys
//     "adm:<policy>:<client>", shared across processes.
//   - [Bucket]: in-process token bucket per key (golang.org/x/time/rate)
//     with idle eviction.
//
// Both report (allowed, retryAfter, err) so HTTP middleware can answer with a
// distinct 429 and a Retry-After hint.
//
// # What this package must NOT do
//
//   - Decide which endpoints are limited (that is wiring in httpapi).
//   - Be imported outside the portalauth module.
package rate
