// Package observability builds the zap logger used across the service and
// holds the Prometheus counters for screening, rewriting and audit writes.
//
// Counters are registered once with the default registry and exposed on
// /metrics by the router.
package observability
