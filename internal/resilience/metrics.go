package resilience

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	metricsOnce sync.Once

	// BreakerState exposes the current breaker state per target (0 closed, 1 open, 2 half-open).
	BreakerState *prometheus.GaugeVec
	// BreakerTransitions counts state transitions per target.
	BreakerTransitions *prometheus.CounterVec
)

// MustRegisterMetrics registers the breaker collectors. Safe to call more than once.
func MustRegisterMetrics(namespace string, reg prometheus.Registerer) {
	metricsOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		BreakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "breaker_state",
			Help:      "Circuit breaker state per upstream target.",
		}, []string{"target"})
		BreakerTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "breaker_transitions_total",
			Help:      "Circuit breaker state transitions per upstream target.",
		}, []string{"target", "from_state", "to_state"})
		if err := reg.Register(BreakerState); err != nil {
			if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
				if v, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
					BreakerState = v
				}
			}
		}
		if err := reg.Register(BreakerTransitions); err != nil {
			if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
				if v, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
					BreakerTransitions = v
				}
			}
		}
	})
}
