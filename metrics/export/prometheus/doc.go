// Package prometheus exposes engine counters as a client_golang Collector.
//
// [NewCollector] reads Engine.MetricsSnapshot on every scrape. Counter names
// are portalauth_*_total; the latency histogram is
// portalauth_authenticate_latency_seconds. Callers register the collector on
// their own registry.
package prometheus
