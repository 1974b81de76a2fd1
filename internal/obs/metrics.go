package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics bundles the request-level collectors.
type HTTPMetrics struct {
	ReqTotal *prometheus.CounterVec
	ReqDur   *prometheus.HistogramVec
	InFlight prometheus.Gauge
}

// NewHTTPMetrics constructs and registers the HTTP collectors.
func NewHTTPMetrics(namespace string, reg prometheus.Registerer) *HTTPMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &HTTPMetrics{
		ReqTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Count of HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		ReqDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		}, []string{"method", "route"}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Number of HTTP requests currently being served.",
		}),
	}
	mustRegisterCollector(reg, m.ReqTotal, func(existing prometheus.Collector) {
		if v, ok := existing.(*prometheus.CounterVec); ok {
			m.ReqTotal = v
		}
	})
	mustRegisterCollector(reg, m.ReqDur, func(existing prometheus.Collector) {
		if v, ok := existing.(*prometheus.HistogramVec); ok {
			m.ReqDur = v
		}
	})
	mustRegisterCollector(reg, m.InFlight, func(existing prometheus.Collector) {
		if v, ok := existing.(prometheus.Gauge); ok {
			m.InFlight = v
		}
	})
	return m
}

var (
	domainOnce sync.Once

	// SlotFetchTotal counts slot catalog fetches by outcome.
	SlotFetchTotal *prometheus.CounterVec
	// RestrictionFailOpenTotal counts restriction lookups that failed and were treated as unrestricted.
	RestrictionFailOpenTotal prometheus.Counter
	// ReconcileIssuesTotal counts cart reconciliation issues by reason.
	ReconcileIssuesTotal *prometheus.CounterVec
	// PromoApplyTotal counts promo code applications by result.
	PromoApplyTotal *prometheus.CounterVec
	// SlotResolutionsSuperseded counts resolver results discarded because a newer request replaced them.
	SlotResolutionsSuperseded prometheus.Counter
)

// MustRegisterDomainMetrics initialises and registers domain-specific collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		SlotFetchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slot_fetch_total",
			Help:      "Count of slot availability fetches by result.",
		}, []string{"result"})
		RestrictionFailOpenTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "restriction_fail_open_total",
			Help:      "Restriction lookups that failed and were treated as unrestricted.",
		})
		ReconcileIssuesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_issues_total",
			Help:      "Cart reconciliation issues by reason.",
		}, []string{"reason"})
		PromoApplyTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "promo_apply_total",
			Help:      "Promo code application outcomes.",
		}, []string{"result"})
		SlotResolutionsSuperseded = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slot_resolutions_superseded_total",
			Help:      "Resolver computations discarded due to a newer request.",
		})

		mustRegisterCollector(reg, SlotFetchTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				SlotFetchTotal = v
			}
		})
		mustRegisterCollector(reg, RestrictionFailOpenTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				RestrictionFailOpenTotal = v
			}
		})
		mustRegisterCollector(reg, ReconcileIssuesTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				ReconcileIssuesTotal = v
			}
		})
		mustRegisterCollector(reg, PromoApplyTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				PromoApplyTotal = v
			}
		})
		mustRegisterCollector(reg, SlotResolutionsSuperseded, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				SlotResolutionsSuperseded = v
			}
		})
	})
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register metric: %w", err))
	}
}
