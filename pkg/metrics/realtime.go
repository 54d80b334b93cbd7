package metrics

import "github.com/prometheus/client_golang/prometheus"

// RealtimeMetrics exposes hub connection and delivery counters.
type RealtimeMetrics struct {
	connections prometheus.Gauge
	delivered   *prometheus.CounterVec
	dropped     prometheus.Counter
}

func NewRealtimeMetrics(reg prometheus.Registerer) *RealtimeMetrics {
	if reg == nil {
		return &RealtimeMetrics{}
	}
	connections := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "realtime_connections",
		Help:      "Open WebSocket connections on this instance.",
	})
	delivered := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "realtime_events_delivered_total",
		Help:      "Realtime events queued to local connections.",
	}, []string{"event"})
	dropped := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "realtime_events_dropped_total",
		Help:      "Realtime events dropped because a client buffer was full.",
	})
	reg.MustRegister(connections, delivered, dropped)
	return &RealtimeMetrics{connections: connections, delivered: delivered, dropped: dropped}
}

func (m *RealtimeMetrics) Connected() {
	if m == nil || m.connections == nil {
		return
	}
	m.connections.Inc()
}

func (m *RealtimeMetrics) Disconnected() {
	if m == nil || m.connections == nil {
		return
	}
	m.connections.Dec()
}

func (m *RealtimeMetrics) Delivered(event string) {
	if m == nil || m.delivered == nil {
		return
	}
	m.delivered.WithLabelValues(event).Inc()
}

func (m *RealtimeMetrics) Dropped() {
	if m == nil || m.dropped == nil {
		return
	}
	m.dropped.Inc()
}
