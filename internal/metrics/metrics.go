package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fxgate_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fxgate_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// AdmissionTotal counts metered requests by endpoint and pipeline outcome
	// (ok, unauthorized, insufficient_credits, rate_limited, not_found, upstream_error).
	AdmissionTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fxgate_admission_total",
			Help: "Metered requests by endpoint and admission outcome.",
		},
		[]string{"endpoint", "outcome"},
	)

	CreditsDebitedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fxgate_credits_debited_total",
			Help: "Total credits charged for successful metered calls.",
		},
	)

	UpstreamRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fxgate_upstream_request_duration_seconds",
			Help:    "Latency of calls to the currency provider.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "result"},
	)

	UsersRegisteredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fxgate_users_registered_total",
			Help: "Total number of registered users.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		AdmissionTotal,
		CreditsDebitedTotal,
		UpstreamRequestDuration,
		UsersRegisteredTotal,
	)
}
