package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the inheritance engine's Prometheus metrics.
type Metrics struct {
	PlansCreated   prometheus.Counter
	PlansTriggered prometheus.Counter
	Claims         prometheus.Counter
	PlansCompleted prometheus.Counter
	ClaimLag       prometheus.Histogram
}

// New creates and registers the inheritance metrics.
func New() *Metrics {
	return &Metrics{
		PlansCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "landledger_inheritance_plans_created_total",
			Help: "Total inheritance plans created",
		}),
		PlansTriggered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "landledger_inheritance_plans_triggered_total",
			Help: "Total plans triggered by a death certificate",
		}),
		Claims: promauto.NewCounter(prometheus.CounterOpts{
			Name: "landledger_inheritance_claims_total",
			Help: "Total successful heir claims",
		}),
		PlansCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "landledger_inheritance_plans_completed_total",
			Help: "Total plans fully distributed",
		}),
		ClaimLag: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "landledger_inheritance_claim_lag_days",
			Help:    "Days between plan trigger and each heir claim",
			Buckets: []float64{1, 7, 30, 90, 180, 365},
		}),
	}
}
