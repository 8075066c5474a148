package querycache

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts cache activity per key domain. A nil *Metrics records nothing.
type Metrics struct {
	fetches       *prometheus.CounterVec
	hits          *prometheus.CounterVec
	invalidations *prometheus.CounterVec
	resets        *prometheus.CounterVec
	mutations     *prometheus.CounterVec
}

// NewMetrics builds the collectors under namespace. Call Register to expose them.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "querycache",
			Name:      "fetches_total",
			Help:      "Reads that reached the fetch function, by domain and outcome.",
		}, []string{"domain", "outcome"}),
		hits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "querycache",
			Name:      "hits_total",
			Help:      "Reads served from fresh cached data.",
		}, []string{"domain"}),
		invalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "querycache",
			Name:      "invalidations_total",
			Help:      "Entries marked stale.",
		}, []string{"domain"}),
		resets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "querycache",
			Name:      "resets_total",
			Help:      "Entries whose data was dropped.",
		}, []string{"domain"}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "querycache",
			Name:      "mutations_total",
			Help:      "Mutations by name and outcome.",
		}, []string{"mutation", "outcome"}),
	}
}

// Register adds every collector to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{m.fetches, m.hits, m.invalidations, m.resets, m.mutations}
}

func (m *Metrics) fetched(domain, outcome string) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(domain, outcome).Inc()
}

func (m *Metrics) hit(domain string) {
	if m == nil {
		return
	}
	m.hits.WithLabelValues(domain).Inc()
}

func (m *Metrics) invalidated(domain string) {
	if m == nil {
		return
	}
	m.invalidations.WithLabelValues(domain).Inc()
}

func (m *Metrics) reset(domain string) {
	if m == nil {
		return
	}
	m.resets.WithLabelValues(domain).Inc()
}

func (m *Metrics) mutated(name, outcome string) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(name, outcome).Inc()
}
