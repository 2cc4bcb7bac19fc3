package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Audit write failure reasons.
const (
	AuditBufferFull  = "buffer_full"
	AuditNotRunning  = "not_running"
	AuditInsertError = "insert_error"
)

var (
	screenVerdicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leads_guard_screen_verdicts_total",
			Help: "Input screen verdicts by category and mode",
		},
		[]string{"category", "mode", "blocked"},
	)

	rewriteOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leads_guard_rewrite_outcomes_total",
			Help: "Query rewrites by role and outcome",
		},
		[]string{"role", "outcome"},
	)

	rowFiltersAdded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leads_guard_row_filters_added_total",
			Help: "Ownership predicates injected into plans",
		},
		[]string{"role"},
	)

	auditWrites = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "leads_guard_audit_writes_total",
			Help: "Audit records persisted",
		},
	)

	auditFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leads_guard_audit_write_failures_total",
			Help: "Audit records that could not be persisted",
		},
		[]string{"reason"},
	)
)

// ObserveScreen counts one screen verdict. Allowed input is counted under
// category "none".
func ObserveScreen(category, mode string, blocked bool) {
	if category == "" {
		category = "none"
	}
	b := "false"
	if blocked {
		b = "true"
	}
	screenVerdicts.WithLabelValues(category, mode, b).Inc()
}

// ObserveRewrite counts one rewrite outcome such as "executed" or an error type.
func ObserveRewrite(role, outcome string, filterAdded bool) {
	if role == "" {
		role = "unknown"
	}
	rewriteOutcomes.WithLabelValues(role, outcome).Inc()
	if filterAdded {
		rowFiltersAdded.WithLabelValues(role).Inc()
	}
}

// ObserveAuditWrite counts one persisted audit record.
func ObserveAuditWrite() {
	auditWrites.Inc()
}

// ObserveAuditFailure counts one lost audit record.
func ObserveAuditFailure(reason string) {
	auditFailures.WithLabelValues(reason).Inc()
}
