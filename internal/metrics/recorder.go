package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	recordTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_records_total",
			Help: "Settlement record writes by result (inserted, duplicate, retry_scheduled, dropped)",
		},
		[]string{"result"},
	)

	recorderQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "settlement_recorder_queue_depth",
			Help: "Settlement records waiting to be written",
		},
	)
)

func RecordSettlementWrite(result string) {
	recordTotal.WithLabelValues(result).Inc()
}

func SetRecorderQueueDepth(n int) {
	recorderQueueDepth.Set(float64(n))
}
