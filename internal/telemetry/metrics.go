package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	JobsEnqueued = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "campaignflow_jobs_enqueued_total",
		Help: "Jobs accepted by the producer",
	}, []string{"job_type"})
	JobsCompleted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "campaignflow_jobs_completed_total",
		Help: "Jobs that finished successfully",
	}, []string{"job_type"})
	JobsFailed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "campaignflow_jobs_failed_total",
		Help: "Jobs that finished in failure",
	}, []string{"job_type"})
	QuotaRejections = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "campaignflow_quota_rejections_total",
		Help: "Enqueue requests rejected by tenant quotas",
	}, []string{"scope"})
	PublishAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "campaignflow_publish_attempts_total",
		Help: "Publish attempts by platform and outcome",
	}, []string{"platform", "outcome"})
	RateLimitDenials = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "campaignflow_rate_limit_denials_total",
		Help: "Publish admissions denied by the rate limiter",
	}, []string{"platform"})
	OrphansReconciled = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "campaignflow_orphans_reconciled_total",
		Help: "Pending jobs re-enqueued by the reconciliation sweep",
	})
)

// Handler exposes /metrics with a singleton registry.
func Handler() http.Handler {
	once.Do(func() {
		prometheus.MustRegister(
			JobsEnqueued,
			JobsCompleted,
			JobsFailed,
			QuotaRejections,
			PublishAttempts,
			RateLimitDenials,
			OrphansReconciled,
		)
	})
	return promhttp.Handler()
}
