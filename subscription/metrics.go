package subscription

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the process-wide counters/gauges the subscription core
// exercises, matching the metrics stack used across the SIP-domain
// reference repos (prometheus/client_golang, used by emiago/sipgo and
// arzzra/soft_phone). A nil *Metrics is valid and records nothing.
type Metrics struct {
	active       prometheus.Gauge
	created      prometheus.Counter
	terminated   *prometheus.CounterVec
	pendingTotal prometheus.Gauge
}

// NewMetrics registers the core's collectors against reg. Pass
// prometheus.NewRegistry() in tests to avoid colliding with the
// default global registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sip_subscriptions_active",
			Help: "Subscriptions currently not in the Terminated state.",
		}),
		created: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sip_subscriptions_created_total",
			Help: "Subscriptions created since process start.",
		}),
		terminated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sip_subscriptions_terminated_total",
			Help: "Subscriptions terminated since process start, by reason.",
		}, []string{"reason"}),
		pendingTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sip_subscriptions_pending_subscribe_total",
			Help: "Sum of pending_subscribe across all live subscriptions.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.active, m.created, m.terminated, m.pendingTotal)
	}
	return m
}

func (m *Metrics) onCreated() {
	if m == nil {
		return
	}
	m.created.Inc()
	m.active.Inc()
}

func (m *Metrics) onTerminated(reason string) {
	if m == nil {
		return
	}
	m.active.Dec()
	m.terminated.WithLabelValues(reason).Inc()
}

func (m *Metrics) onPendingDelta(delta int) {
	if m == nil {
		return
	}
	m.pendingTotal.Add(float64(delta))
}
