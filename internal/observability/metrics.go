// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the transfer engine.
type Metrics struct {
	// Transfer pipeline metrics
	TransfersSubmitted prometheus.Counter
	TransfersRejected  *prometheus.CounterVec
	TransfersFailed    *prometheus.CounterVec
	TransferDuration   prometheus.Histogram

	// Fee metrics
	GasEstimate      prometheus.Histogram
	BufferedGas      prometheus.Histogram
	FeeBufferPercent prometheus.Gauge

	// RPC transport metrics
	RPCDuration *prometheus.HistogramVec

	// Balance query metrics
	BalanceQueries     prometheus.Counter
	BalanceQueryErrors prometheus.Counter

	// Confirmation metrics
	ConfirmationPolls prometheus.Counter
}

// NewMetrics creates a Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "evm_token_engine"
	}

	return &Metrics{
		TransfersSubmitted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transfer",
			Name:      "submitted_total",
			Help:      "Total number of transfers broadcast to the network",
		}),
		TransfersRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transfer",
			Name:      "rejected_total",
			Help:      "Total number of transfers rejected before submission",
		}, []string{"reason"}),
		TransfersFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transfer",
			Name:      "failed_total",
			Help:      "Total number of transfers that failed on a network or protocol error",
		}, []string{"kind"}),
		TransferDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "transfer",
			Name:      "duration_seconds",
			Help:      "Duration of one transfer orchestration run",
			Buckets:   prometheus.DefBuckets,
		}),
		GasEstimate: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "fee",
			Name:      "gas_estimate",
			Help:      "Base gas estimates returned by the node",
			Buckets:   prometheus.ExponentialBuckets(21000, 2, 10),
		}),
		BufferedGas: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "fee",
			Name:      "buffered_gas",
			Help:      "Gas limits after applying the safety buffer",
			Buckets:   prometheus.ExponentialBuckets(21000, 2, 10),
		}),
		FeeBufferPercent: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "fee",
			Name:      "buffer_percent",
			Help:      "Configured gas safety buffer percent",
		}),
		RPCDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "request_duration_seconds",
			Help:      "Duration of JSON-RPC calls, including transport retries",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		BalanceQueries: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "balance",
			Name:      "queries_total",
			Help:      "Total number of balance queries",
		}),
		BalanceQueryErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "balance",
			Name:      "query_errors_total",
			Help:      "Total number of failed balance queries",
		}),
		ConfirmationPolls: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "confirmation",
			Name:      "polls_total",
			Help:      "Total number of transaction receipt polls",
		}),
	}
}

// Handler returns the HTTP handler serving the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}
