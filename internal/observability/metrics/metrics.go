package metrics

import "github.com/prometheus/client_golang/prometheus"

// DispatchMetrics exposes counters/histograms for the assignment workflow.
type DispatchMetrics struct {
	notificationsTotal *prometheus.CounterVec
	responsesTotal     *prometheus.CounterVec
	sweepTotal         *prometheus.CounterVec
	webhookLatency     *prometheus.HistogramVec
}

func NewDispatchMetrics(reg prometheus.Registerer) *DispatchMetrics {
	m := &DispatchMetrics{
		notificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rmm",
			Subsystem: "dispatch",
			Name:      "notifications_total",
			Help:      "Outbound booking notifications by channel and outcome",
		}, []string{"channel", "audience", "status"}),
		responsesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rmm",
			Subsystem: "dispatch",
			Name:      "responses_total",
			Help:      "Therapist responses by action, protocol and outcome",
		}, []string{"action", "protocol", "outcome"}),
		sweepTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rmm",
			Subsystem: "dispatch",
			Name:      "sweep_bookings_total",
			Help:      "Bookings acted on by the timeout sweep",
		}, []string{"stage", "result"}),
		webhookLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "rmm",
			Subsystem: "dispatch",
			Name:      "webhook_latency_seconds",
			Help:      "Latency of inbound webhook processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.notificationsTotal, m.responsesTotal, m.sweepTotal, m.webhookLatency)
	return m
}

func (m *DispatchMetrics) ObserveNotification(channel, audience string, sent bool) {
	if m == nil {
		return
	}
	status := "failed"
	if sent {
		status = "sent"
	}
	m.notificationsTotal.WithLabelValues(channel, audience, status).Inc()
}

func (m *DispatchMetrics) ObserveResponse(action, protocol, outcome string) {
	if m == nil {
		return
	}
	m.responsesTotal.WithLabelValues(action, protocol, outcome).Inc()
}

func (m *DispatchMetrics) ObserveSweep(stage, result string, count int) {
	if m == nil || count == 0 {
		return
	}
	m.sweepTotal.WithLabelValues(stage, result).Add(float64(count))
}

func (m *DispatchMetrics) ObserveWebhookLatency(endpoint string, seconds float64) {
	if m == nil {
		return
	}
	m.webhookLatency.WithLabelValues(endpoint).Observe(seconds)
}
