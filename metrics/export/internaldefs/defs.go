package internaldefs

import (
	"github.com/MrEthical07/portalauth"
)

// CounterDef names one engine counter.
type CounterDef struct {
	ID   portalauth.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram.
type HistogramDef struct {
	ID   portalauth.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: portalauth.MetricLoginSuccess, Name: "portalauth_login_success_total", Help: "Successful logins."},
	{ID: portalauth.MetricLoginFailure, Name: "portalauth_login_failure_total", Help: "Logins rejected for bad credentials or backend failure."},
	{ID: portalauth.MetricLoginDisabled, Name: "portalauth_login_disabled_total", Help: "Logins rejected because the account is suspended or rejected."},
	{ID: portalauth.MetricRefreshSuccess, Name: "portalauth_refresh_success_total", Help: "Successful renewal rotations."},
	{ID: portalauth.MetricRefreshFailure, Name: "portalauth_refresh_failure_total", Help: "Failed renewal attempts."},
	{ID: portalauth.MetricRefreshReuse, Name: "portalauth_refresh_reuse_total", Help: "Renewal credentials presented after rotation."},
	{ID: portalauth.MetricLogout, Name: "portalauth_logout_total", Help: "Logout operations."},
	{ID: portalauth.MetricAccountCreated, Name: "portalauth_account_created_total", Help: "Registered accounts."},
	{ID: portalauth.MetricAccountDuplicate, Name: "portalauth_account_duplicate_total", Help: "Registrations rejected as duplicate email."},
	{ID: portalauth.MetricAccountStatusChanged, Name: "portalauth_account_status_changed_total", Help: "Admin status transitions."},
	{ID: portalauth.MetricSessionsRevoked, Name: "portalauth_sessions_revoked_total", Help: "Renewal records revoked."},
	{ID: portalauth.MetricGateUnauthenticated, Name: "portalauth_gate_unauthenticated_total", Help: "Requests rejected with 401 by the gate."},
	{ID: portalauth.MetricGateForbidden, Name: "portalauth_gate_forbidden_total", Help: "Requests rejected with 403 for role or capability."},
	{ID: portalauth.MetricGateStandingRejected, Name: "portalauth_gate_standing_rejected_total", Help: "Requests rejected with 403 for account standing."},
	{ID: portalauth.MetricAdmissionRejected, Name: "portalauth_admission_rejected_total", Help: "Requests rejected with 429."},
}

var HistogramDefs = []HistogramDef{
	{ID: portalauth.MetricAuthenticateLatency, Name: "portalauth_authenticate_latency_seconds", Help: "Session credential verification latency."},
}

// HistogramUpperBounds are the finite bucket bounds in seconds. The engine
// keeps one extra overflow bucket.
var HistogramUpperBounds = []float64{0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.01}

var HistogramBoundSuffix = []string{
	"50us",
	"100us",
	"250us",
	"500us",
	"1ms",
	"2_5ms",
	"10ms",
	"inf",
}

const BucketCount = 8

// NormalizeBuckets copies raw into a fixed-size array, zero-filling missing
// buckets.
func NormalizeBuckets(raw []uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

func CumulativeBuckets(raw [BucketCount]uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
