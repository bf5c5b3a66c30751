// Package middleware adapts portalauth.Engine to net/http.
//
// # Gate
//
// [Gate] extracts the session credential (cookie first, then the
// Authorization bearer header), verifies it through Engine.Authenticate and
// applies a [Requirement]. Unauthenticated requests get 401, authenticated
// requests that fail the role, standing or capability check get 403.
//
// Verified-required requirements consult live account standing whenever
// the credential is older than Engine.StatusStaleness.
//
// # Admission
//
// [Admit] applies a [Limiter] keyed per client. Rejected requests get 429
// with Retry-After; limiter backend failures get 503.
//
// This package never parses tokens or touches storage directly.
package middleware
