package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler returns the exposition handler for this package's metrics.
// Served on the worker's metrics listen address for the duration of a
// batch run so a scrape during the run observes the counters.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Submission metrics
var (
	RequestsSubmittedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mail_requests_submitted_total",
			Help: "Total number of mail requests accepted for dispatch",
		},
	)

	SubmissionRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mail_submission_rejected_total",
			Help: "Total number of submissions rejected by validation",
		},
		[]string{"reason"}, // recipient_count, attachment_size
	)
)

// Dispatch metrics
var (
	RequestsClaimedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mail_requests_claimed_total",
			Help: "Total number of requests claimed by this process",
		},
	)

	RequestsDispatchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mail_requests_dispatched_total",
			Help: "Total number of dispatch attempts by outcome",
		},
		[]string{"outcome"}, // sent, failed
	)

	DispatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mail_dispatch_duration_seconds",
			Help:    "Duration of per-request dispatch including the transport send",
			Buckets: prometheus.DefBuckets,
		},
	)

	UnclaimedRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mail_requests_unclaimed",
			Help: "Unclaimed UNSENT requests observed before the last claim",
		},
	)
)
