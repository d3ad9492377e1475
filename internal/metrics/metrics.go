package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request counter
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nemf_review_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// HTTP request duration histogram
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nemf_review_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	HTTPActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nemf_review_http_active_requests",
			Help: "Number of in-flight HTTP requests",
		},
	)

	// Claim table
	LiveClaims = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nemf_review_live_claims",
			Help: "Unexpired claims as of the last claim table operation",
		},
	)

	ClaimConflictsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nemf_review_claim_conflicts_total",
			Help: "Claim operations refused because another holder owns the lease",
		},
		[]string{"operation"}, // "acquire", "renew", "release"
	)

	ClaimsExpiredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nemf_review_claims_expired_total",
			Help: "Expired claims removed by the sweeper",
		},
	)

	// Review outcomes
	SubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nemf_review_submissions_total",
			Help: "Review submissions by action and result",
		},
		[]string{"action", "result"},
	)

	ReconcileDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nemf_review_reconcile_decisions_total",
			Help: "Field-slip reconciliation decisions",
		},
		[]string{"decision"}, // "create", "silent_link", "flag"
	)

	ExternalRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nemf_review_external_requests_total",
			Help: "Mushroom Observer API calls by endpoint and outcome",
		},
		[]string{"endpoint", "outcome"},
	)
)

// RecordHTTPRequest records metrics for an HTTP request
func RecordHTTPRequest(method, route string, statusCode int, duration time.Duration) {
	status := strconv.Itoa(statusCode)

	HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, route, status).Observe(duration.Seconds())
}

// RecordClaimConflict counts a refused claim operation.
func RecordClaimConflict(operation string) {
	ClaimConflictsTotal.WithLabelValues(operation).Inc()
}

// SetLiveClaims publishes the number of unexpired claims.
func SetLiveClaims(n int) {
	LiveClaims.Set(float64(n))
}

// RecordExpiredClaims counts claims removed by a sweep.
func RecordExpiredClaims(n int) {
	if n > 0 {
		ClaimsExpiredTotal.Add(float64(n))
	}
}

// RecordSubmission counts a submit call by action and result kind.
func RecordSubmission(action, result string) {
	SubmissionsTotal.WithLabelValues(action, result).Inc()
}

// RecordReconcileDecision counts a reconciliation outcome.
func RecordReconcileDecision(decision string) {
	ReconcileDecisionsTotal.WithLabelValues(decision).Inc()
}

// RecordExternalRequest counts one external API call.
func RecordExternalRequest(endpoint, outcome string) {
	ExternalRequestsTotal.WithLabelValues(endpoint, outcome).Inc()
}
