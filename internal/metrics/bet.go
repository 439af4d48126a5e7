package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 结算结果标签
const (
	ResultWin          = "win"
	ResultLoss         = "loss"
	ResultRejected     = "rejected"
	ResultDebitFailed  = "debit_failed"
	ResultSessionError = "session_missing"
	ResultInternal     = "internal_error"
	ResultPanic        = "panic"
)

var (
	settlementTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bet_settlements_total",
			Help: "Total bet settlements by result",
		},
		[]string{"result"},
	)

	settlementDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bet_settlement_duration_ms",
			Help:    "Bet settlement duration in milliseconds",
			Buckets: prometheus.ExponentialBuckets(5, 2, 10),
		},
		[]string{"result"},
	)

	creditFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_credit_failures_total",
			Help: "Credits that failed after a win was determined and need reconciliation",
		},
	)
)

// RecordSettlement records business metrics for one settlement attempt.
func RecordSettlement(result string, started time.Time) {
	settlementTotal.WithLabelValues(result).Inc()
	durMs := float64(time.Since(started).Milliseconds())
	settlementDuration.WithLabelValues(result).Observe(durMs)
}

// IncCreditFailure 记录一次需要对账的 CREDIT 失败
func IncCreditFailure() {
	creditFailures.Inc()
}
