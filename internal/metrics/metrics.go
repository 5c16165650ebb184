// Package metrics exposes the Prometheus series this system emits: refresh
// outcomes and duration, published snapshot sizes, and relay byte/error
// counts.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lineupd_refresh_total",
			Help: "Total refresh cycles by outcome.",
		},
		[]string{"outcome"}, // outcome: ok, fail
	)

	RefreshDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lineupd_refresh_duration_seconds",
			Help:    "Wall-clock duration of a full refresh cycle.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"outcome"},
	)

	SnapshotChannelCount = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "lineupd_snapshot_channel_count",
			Help: "Number of channels published in the active snapshot, by profile.",
		},
		[]string{"profile"},
	)

	RelayBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lineupd_relay_bytes_total",
			Help: "Total bytes proxied to clients through the stream relay.",
		},
		[]string{"outcome"}, // outcome: ok, client_disconnect
	)

	RelayRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lineupd_relay_requests_total",
			Help: "Total stream relay requests by result.",
		},
		[]string{"result"}, // result: ok, client_disconnect, unknown_key, no_active_snapshot, upstream_failed, error
	)
)

// ObserveRefresh records a refresh cycle's outcome and duration.
func ObserveRefresh(outcome string, start time.Time) {
	RefreshTotal.WithLabelValues(outcome).Inc()
	RefreshDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
}
