package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	PresenceChecks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "keeper_sync",
		Name:      "presence_checks_total",
		Help:      "Extension presence checks by outcome.",
	}, []string{"outcome"})

	StateUpdates = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "keeper_sync",
		Name:      "state_updates_total",
		Help:      "Wallet state snapshots ingested.",
	})

	AssetRefreshes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "keeper_sync",
		Name:      "asset_refreshes_total",
		Help:      "Asset balance refreshes by outcome (applied, stale, failed).",
	}, []string{"outcome"})

	Submissions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "keeper_sync",
		Name:      "submissions_total",
		Help:      "Callable function submissions by result.",
	}, []string{"result"})

	NodeRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "keeper_sync",
		Name:      "node_requests_total",
		Help:      "Requests sent to Waves nodes by endpoint and status.",
	}, []string{"endpoint", "status"})

	NodeRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "keeper_sync",
		Name:      "node_request_duration_seconds",
		Help:      "Latency of requests sent to Waves nodes.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"endpoint"})

	Notifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "keeper_sync",
		Name:      "notifications_total",
		Help:      "User notifications by type.",
	}, []string{"type"})
)

var registerOnce sync.Once

// MustRegisterMetrics registers all collectors with the default registry once.
func MustRegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			PresenceChecks,
			StateUpdates,
			AssetRefreshes,
			Submissions,
			NodeRequests,
			NodeRequestDuration,
			Notifications,
		)
	})
}
