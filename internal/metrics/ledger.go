package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ledgerTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_requests_total",
			Help: "Total upstream ledger requests by kind and result",
		},
		[]string{"kind", "result"},
	)

	ledgerDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ledger_request_duration_ms",
			Help:    "Upstream ledger request duration in milliseconds (retries included)",
			Buckets: prometheus.ExponentialBuckets(5, 2, 10),
		},
		[]string{"kind"},
	)
)

// RecordLedger result should be "success", "rejected" or "error"; kind is normalized to lower-case.
func RecordLedger(kind, result string, started time.Time) {
	k := strings.ToLower(kind)
	ledgerTotal.WithLabelValues(k, result).Inc()
	ledgerDuration.WithLabelValues(k).Observe(float64(time.Since(started).Milliseconds()))
}
