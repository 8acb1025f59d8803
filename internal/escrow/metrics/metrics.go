package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the escrow engine's Prometheus metrics.
type Metrics struct {
	Created            prometheus.Counter
	Settled            prometheus.Counter
	Refunded           prometheus.Counter
	Cancelled          prometheus.Counter
	SettlementDuration prometheus.Histogram
}

// New creates and registers the escrow metrics.
func New() *Metrics {
	return &Metrics{
		Created: promauto.NewCounter(prometheus.CounterOpts{
			Name: "landledger_escrows_created_total",
			Help: "Total escrows created",
		}),
		Settled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "landledger_escrows_settled_total",
			Help: "Total escrows settled (ownership and funds moved)",
		}),
		Refunded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "landledger_escrows_refunded_total",
			Help: "Total escrows refunded to the buyer",
		}),
		Cancelled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "landledger_escrows_cancelled_total",
			Help: "Total escrows cancelled before funding",
		}),
		SettlementDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "landledger_escrow_settlement_seconds",
			Help:    "Wall time of the atomic settlement sequence",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
