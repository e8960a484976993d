package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the counters exported at /metrics.
type Metrics struct {
	SalesCommitted  prometheus.Counter
	SalesVoided     prometheus.Counter
	CommitConflicts prometheus.Counter
}

// New registers the POS counters on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SalesCommitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "pos_sales_committed_total",
			Help: "Number of sales committed.",
		}),
		SalesVoided: factory.NewCounter(prometheus.CounterOpts{
			Name: "pos_sales_voided_total",
			Help: "Number of sales voided.",
		}),
		CommitConflicts: factory.NewCounter(prometheus.CounterOpts{
			Name: "pos_sale_commit_conflicts_total",
			Help: "Number of sale commits aborted by a concurrent update.",
		}),
	}
}
