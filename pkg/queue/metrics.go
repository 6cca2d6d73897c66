package queue

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Transaction outcomes reported by Metrics.
const (
	OutcomeCommit   = "commit"
	OutcomeRollback = "rollback"
	OutcomePrepare  = "prepare"
)

// Metrics exposes queue activity to Prometheus. A nil *Metrics records nothing.
type Metrics struct {
	offered      *prometheus.CounterVec
	polled       *prometheus.CounterVec
	transactions *prometheus.CounterVec
	size         *prometheus.GaugeVec
}

// NewMetrics creates the queue collectors and registers them with reg.
// Collectors already registered by an earlier Metrics are reused.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		offered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mulecore",
			Subsystem: "queue",
			Name:      "offered_total",
			Help:      "Items made visible on a queue.",
		}, []string{"queue"}),
		polled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mulecore",
			Subsystem: "queue",
			Name:      "polled_total",
			Help:      "Items taken from a queue.",
		}, []string{"queue"}),
		transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mulecore",
			Subsystem: "queue",
			Name:      "transactions_total",
			Help:      "Completed queue transactions by outcome.",
		}, []string{"outcome"}),
		size: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "mulecore",
			Subsystem: "queue",
			Name:      "size",
			Help:      "Committed items held by a queue.",
		}, []string{"queue"}),
	}
	if reg == nil {
		return m, nil
	}

	var err error
	if m.offered, err = register(reg, m.offered); err != nil {
		return nil, err
	}
	if m.polled, err = register(reg, m.polled); err != nil {
		return nil, err
	}
	if m.transactions, err = register(reg, m.transactions); err != nil {
		return nil, err
	}
	if m.size, err = register(reg, m.size); err != nil {
		return nil, err
	}
	return m, nil
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		var zero T
		return zero, err
	}
	return c, nil
}

func (m *Metrics) offer(queue string) {
	if m != nil {
		m.offered.WithLabelValues(queue).Inc()
	}
}

func (m *Metrics) poll(queue string) {
	if m != nil {
		m.polled.WithLabelValues(queue).Inc()
	}
}

func (m *Metrics) transaction(outcome string) {
	if m != nil {
		m.transactions.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) setSize(queue string, n int) {
	if m != nil {
		m.size.WithLabelValues(queue).Set(float64(n))
	}
}
