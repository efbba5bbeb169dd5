// Package metrics exposes Prometheus collectors for the lead pipeline.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	postsFetchedTotal   *prometheus.CounterVec
	postsAcceptedTotal  *prometheus.CounterVec
	postsDuplicateTotal *prometheus.CounterVec
	postsBaitTotal      *prometheus.CounterVec
	providerCallsTotal  *prometheus.CounterVec
	storeRetriesTotal   *prometheus.CounterVec
	notificationsTotal  prometheus.Counter
	runsTotal           *prometheus.CounterVec
	runStage            prometheus.Gauge

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		postsFetchedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leadscout_posts_fetched_total",
				Help: "Total number of posts fetched, labeled by source.",
			},
			[]string{"source"},
		)

		postsAcceptedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leadscout_posts_accepted_total",
				Help: "Total number of posts that passed filtering, labeled by source.",
			},
			[]string{"source"},
		)

		postsDuplicateTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leadscout_posts_duplicate_total",
				Help: "Total number of posts skipped as already seen, labeled by source.",
			},
			[]string{"source"},
		)

		postsBaitTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leadscout_posts_bait_total",
				Help: "Total number of posts flagged as promotional bait, labeled by source.",
			},
			[]string{"source"},
		)

		providerCallsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leadscout_provider_calls_total",
				Help: "Total number of classification provider calls, labeled by provider and outcome.",
			},
			[]string{"provider", "outcome"},
		)

		storeRetriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leadscout_store_retries_total",
				Help: "Total number of retried store operations, labeled by operation.",
			},
			[]string{"op"},
		)

		notificationsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "leadscout_notifications_total",
				Help: "Total number of webhook notification messages sent.",
			},
		)

		runsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leadscout_runs_total",
				Help: "Total number of pipeline runs, labeled by final status.",
			},
			[]string{"status"},
		)

		runStage = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "leadscout_run_stage",
				Help: "Index of the stage the current run has reached.",
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFetched increments the fetched counter for a source.
func ObserveFetched(source string, n int) {
	postsFetchedTotal.WithLabelValues(source).Add(float64(n))
}

// ObserveAccepted increments the accepted counter for a source.
func ObserveAccepted(source string) {
	postsAcceptedTotal.WithLabelValues(source).Inc()
}

// ObserveDuplicate increments the duplicate counter for a source.
func ObserveDuplicate(source string) {
	postsDuplicateTotal.WithLabelValues(source).Inc()
}

// ObserveBait increments the bait counter for a source.
func ObserveBait(source string) {
	postsBaitTotal.WithLabelValues(source).Inc()
}

// ObserveProviderCall increments the provider call counter.
func ObserveProviderCall(provider, outcome string) {
	providerCallsTotal.WithLabelValues(provider, outcome).Inc()
}

// ObserveStoreRetry increments the store retry counter for an operation.
func ObserveStoreRetry(op string) {
	storeRetriesTotal.WithLabelValues(op).Inc()
}

// ObserveNotification increments the notification message counter.
func ObserveNotification() {
	notificationsTotal.Inc()
}

// ObserveRun increments the run counter for the given final status.
func ObserveRun(status string) {
	runsTotal.WithLabelValues(status).Inc()
}

// SetRunStage records the index of the stage the current run reached.
func SetRunStage(index int) {
	runStage.Set(float64(index))
}
